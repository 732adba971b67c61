//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig configures an ONNX encoder.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	Pooling    Pooling
	// OutputName is the token-state output, usually "last_hidden_state".
	OutputName string
}

// ONNXEncoder runs a transformer encoder through ONNX Runtime and pools its token
// states. It requires CGO and the onnxruntime shared library.
type ONNXEncoder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	pooling    Pooling
	tokenizer  Tokenizer
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXEncoder creates an ONNX encoder. InitializeEnvironment is called if not already done.
func NewONNXEncoder(cfg ONNXConfig) (*ONNXEncoder, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "last_hidden_state"
	}
	if cfg.Pooling == "" {
		cfg.Pooling = PoolingMean
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	tokenizer := &SimpleTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Encode("", cfg.MaxTokens)
	shape := ort.NewShape(1, int64(cfg.MaxTokens))

	inputIDsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	attentionMaskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		inputIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	tokenTypeIDsTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.MaxTokens), int64(cfg.Dimensions)))
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEncoder{
		session:             session,
		dimensions:          cfg.Dimensions,
		maxTokens:           cfg.MaxTokens,
		pooling:             cfg.Pooling,
		tokenizer:           tokenizer,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}, nil
}

// EmbedBatch runs the model once per text; the session has a fixed batch dimension of one.
func (e *ONNXEncoder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Encode(text, e.maxTokens)
		copy(e.inputIDsTensor.GetData(), inputIDs)
		copy(e.attentionMaskTensor.GetData(), attentionMask)
		copy(e.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

		if err := e.session.Run(); err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}

		data := e.outputTensor.GetData()
		hidden := make([][]float32, e.maxTokens)
		for pos := 0; pos < e.maxTokens; pos++ {
			if attentionMask[pos] == 0 {
				continue
			}
			row := make([]float32, e.dimensions)
			copy(row, data[pos*e.dimensions:(pos+1)*e.dimensions])
			hidden[pos] = row
		}
		out[i] = Pool(hidden, attentionMask, e.dimensions, e.pooling)
	}
	return out, nil
}

// Tokenizer returns the tokenizer used to frame inputs.
func (e *ONNXEncoder) Tokenizer() Tokenizer {
	return e.tokenizer
}

// Dimensions returns the embedding dimension.
func (e *ONNXEncoder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors.
func (e *ONNXEncoder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputIDsTensor != nil {
		_ = e.inputIDsTensor.Destroy()
		e.inputIDsTensor = nil
	}
	if e.attentionMaskTensor != nil {
		_ = e.attentionMaskTensor.Destroy()
		e.attentionMaskTensor = nil
	}
	if e.tokenTypeIDsTensor != nil {
		_ = e.tokenTypeIDsTensor.Destroy()
		e.tokenTypeIDsTensor = nil
	}
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	return err
}
