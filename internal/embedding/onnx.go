//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/semsearch/internal/vector"
)

// ONNXProvider runs a local sentence-embedding model through ONNX Runtime.
// It requires CGO and the onnxruntime shared library.
type ONNXProvider struct {
	session    *ort.AdvancedSession
	model      string
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXProvider loads the model at modelPath. Caching is left to Service.
func NewONNXProvider(modelPath string, dimensions, maxTokens int) (*ONNXProvider, error) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	tokenizer := &SimpleTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", maxTokens)

	inputIDsTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	attentionMaskTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), attentionMask)
	if err != nil {
		inputIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	tokenTypeIDsTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), tokenTypeIDs)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	outputData := make([]float32, dimensions)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), outputData)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	inputs := []ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor}
	outputs := []ort.ArbitraryTensor{outputTensor}
	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		inputs,
		outputs,
		nil,
	)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXProvider{
		session:             session,
		model:               "onnx:" + filepath.Base(modelPath),
		dimensions:          dimensions,
		maxTokens:           maxTokens,
		tokenizer:           tokenizer,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}, nil
}

func (p *ONNXProvider) embed(text string) ([]float32, error) {
	inputIDs, attentionMask, tokenTypeIDs := p.tokenizer.Tokenize(text, p.maxTokens)

	copy(p.inputIDsTensor.GetData(), inputIDs)
	copy(p.attentionMaskTensor.GetData(), attentionMask)
	copy(p.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := p.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]float32, p.dimensions)
	copy(out, p.outputTensor.GetData())
	return vector.Normalize(out), nil
}

// EmbedBatch runs inference once per text. The session's tensors are shared,
// so calls are serialized.
func (p *ONNXProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := p.embed(text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

// Model returns an identifier derived from the model file name.
func (p *ONNXProvider) Model() string {
	return p.model
}

// Dimensions returns the embedding dimension.
func (p *ONNXProvider) Dimensions() int {
	return p.dimensions
}

// Close destroys the session and tensors.
func (p *ONNXProvider) Close() error {
	var err error
	if p.session != nil {
		err = p.session.Destroy()
		p.session = nil
	}
	for _, t := range []**ort.Tensor[int64]{&p.inputIDsTensor, &p.attentionMaskTensor, &p.tokenTypeIDsTensor} {
		if *t != nil {
			_ = (*t).Destroy()
			*t = nil
		}
	}
	if p.outputTensor != nil {
		_ = p.outputTensor.Destroy()
		p.outputTensor = nil
	}
	return err
}
