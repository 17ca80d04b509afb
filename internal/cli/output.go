// Package cli provides output formatting, progress reporting, sample data and
// file import helpers for the semsearch command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is indented JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// contentPreview is the number of runes of content shown in text output.
const contentPreview = 200

const separator = "─────────────────────────────────────────────────────────"

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes a search response to w in the given format.
func WriteSearchResults(w io.Writer, resp *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, resp)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (threshold %.2f, max %d)\n\n",
		resp.Meta.ResultCount, resp.Meta.QueryTime, resp.Meta.SimilarityThreshold, resp.Meta.MaxResults)
	for i, r := range resp.Results {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "#%d | Similarity: %.4f | Document: %d\n", i+1, r.Similarity, r.DocumentID)
		fmt.Fprintf(w, "Title: %s\n", r.Title)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(collapse(r.Content), contentPreview))
	}
	return nil
}

// WriteDocument writes one document to w in the given format.
func WriteDocument(w io.Writer, doc *models.Document, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, doc)
	}
	fmt.Fprintf(w, "ID:       %d\n", doc.ID)
	fmt.Fprintf(w, "Title:    %s\n", doc.Title)
	fmt.Fprintf(w, "Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Updated:  %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	if len(doc.Metadata) > 0 {
		fmt.Fprintf(w, "Metadata: %s\n", formatMetadata(doc.Metadata))
	}
	fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(doc.Content))
	return nil
}

// WritePage writes a page of documents, one line each in text format.
func WritePage(w io.Writer, page *models.Page, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, page)
	}
	fmt.Fprintf(w, "Page %d of %d (%d documents)\n\n", page.Page, page.TotalPages, page.Total)
	for _, doc := range page.Items {
		fmt.Fprintf(w, "%6d  %s  %s\n", doc.ID, doc.CreatedAt.Format("2006-01-02"), utils.Truncate(doc.Title, 60))
	}
	return nil
}

func formatMetadata(m models.Metadata) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(m[k])
		if err != nil {
			v = []byte("?")
		}
		parts = append(parts, k+"="+string(v))
	}
	return strings.Join(parts, " ")
}

// collapse trims s and folds every whitespace run into a single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
