package cli

import "github.com/hyperjump/semsearch/internal/models"

// SampleDocuments returns the documents loaded by the seed command. Each call
// returns fresh values so callers may modify them.
func SampleDocuments() []models.DocumentInput {
	return []models.DocumentInput{
		{
			Title:   "Introduction to Vector Databases",
			Content: "Vector databases are specialized database systems designed to store and query high-dimensional vectors. " +
				"These vectors typically represent embeddings of various data types such as text, images, audio, or video. " +
				"Vector databases excel at similarity search operations, allowing you to find items that are semantically similar to a query. " +
				"This makes them ideal for applications like semantic search, recommendation systems, and AI-powered applications.",
			Metadata: models.Metadata{
				"category": "technology",
				"tags":     []any{"vector database", "embeddings", "similarity search"},
			},
		},
		{
			Title:   "PostgreSQL and pgvector",
			Content: "PostgreSQL is a powerful open-source relational database system with more than 30 years of active development. " +
				"pgvector is an extension for PostgreSQL that adds support for vector similarity search. " +
				"With pgvector, you can store vector embeddings directly in your PostgreSQL database and perform efficient similarity searches. " +
				"This extension supports various distance metrics including Euclidean distance, cosine similarity, and inner product. " +
				"It also provides indexing capabilities for faster searches, such as the HNSW (Hierarchical Navigable Small World) index.",
			Metadata: models.Metadata{
				"category": "technology",
				"tags":     []any{"postgresql", "pgvector", "database extensions"},
			},
		},
		{
			Title:   "Model Context Protocol (MCP)",
			Content: "The Model Context Protocol (MCP) is a new standard for connecting AI assistants to the systems where data lives. " +
				"MCP acts as a bridge between AI models and external tools or data sources, including content repositories, business tools, and development environments. " +
				"This protocol allows AI assistants to access and operate with context-specific information, leading to more relevant and useful responses. " +
				"MCP simplifies the integration of AI with existing systems by providing a standardized way to connect to various data sources without requiring custom implementations for each one.",
			Metadata: models.Metadata{
				"category": "AI",
				"tags":     []any{"mcp", "ai assistants", "model context protocol"},
			},
		},
		{
			Title:   "Embeddings in Natural Language Processing",
			Content: "Embeddings are dense vector representations of words, phrases, or documents in a high-dimensional space. " +
				"In the context of Natural Language Processing (NLP), embeddings capture semantic relationships between words and phrases. " +
				"Words with similar meanings tend to have similar vector representations, enabling machines to understand semantic similarity. " +
				"Common embedding models include Word2Vec, GloVe, and more recently, embeddings from transformer models like BERT, GPT, and their derivatives. " +
				"These embeddings serve as the foundation for many NLP tasks, including text classification, sentiment analysis, and semantic search.",
			Metadata: models.Metadata{
				"category": "AI",
				"tags":     []any{"nlp", "embeddings", "vector representations"},
			},
		},
		{
			Title:   "Semantic Search Implementation",
			Content: "Semantic search goes beyond traditional keyword matching by understanding the intent and contextual meaning of search queries. " +
				"To implement semantic search, you typically convert both the query and the documents into vector embeddings using machine learning models. " +
				"These embeddings capture the semantic meaning of the text, allowing for comparison based on conceptual similarity rather than exact word matches. " +
				"The search process involves calculating the similarity between the query vector and document vectors using metrics like cosine similarity. " +
				"Results are ranked by similarity score, presenting the most semantically relevant documents to the user.",
			Metadata: models.Metadata{
				"category": "implementation",
				"tags":     []any{"semantic search", "vector search", "similarity metrics"},
			},
		},
		{
			Title:   "TypeScript for Backend Development",
			Content: "TypeScript is a strongly typed programming language that builds on JavaScript by adding static type definitions. " +
				"For backend development, TypeScript offers significant advantages including better code quality, improved developer experience, and fewer runtime errors. " +
				"When using TypeScript with Node.js, developers benefit from type checking, code completion, and better documentation. " +
				"Popular TypeScript frameworks for backend development include NestJS, Express with TypeScript, and Deno. " +
				"The type system helps catch errors during development rather than in production, leading to more robust applications.",
			Metadata: models.Metadata{
				"category": "programming",
				"tags":     []any{"typescript", "backend", "web development"},
			},
		},
		{
			Title:   "Building AI-Powered Applications",
			Content: "AI-powered applications integrate artificial intelligence capabilities to enhance functionality and user experience. " +
				"These applications typically leverage machine learning models, natural language processing, computer vision, or other AI techniques. " +
				"The key components of AI applications include data collection and preparation, model selection or training, model deployment, and monitoring. " +
				"Integration with external AI services via APIs is a common approach for many applications, providing capabilities like language understanding or image recognition. " +
				"Building effective AI applications requires consideration of both technical aspects and ethical concerns, including data privacy and bias mitigation.",
			Metadata: models.Metadata{
				"category": "AI",
				"tags":     []any{"ai applications", "machine learning", "application development"},
			},
		},
	}
}
