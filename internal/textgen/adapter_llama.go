//go:build llama

package textgen

import (
	"context"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

type llamaAdapter struct {
	ctxSize int
	threads int
}

// NewLlamaAdapter returns an adapter backed by llama.cpp.
func NewLlamaAdapter(ctxSize, threads int) Adapter {
	return &llamaAdapter{ctxSize: ctxSize, threads: threads}
}

type llamaSession struct {
	model   *llama.LLama
	threads int
}

func (a *llamaAdapter) Start(modelPath string) (Session, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errUnavailable("text model path is empty")
	}
	m, err := llama.New(modelPath, llama.SetContext(a.ctxSize))
	if err != nil {
		return nil, err
	}
	return &llamaSession{model: m, threads: a.threads}, nil
}

func (s *llamaSession) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	if s.model == nil {
		return "", errUnavailable("llama model not initialized")
	}
	// Abort prediction as soon as the request context is canceled.
	s.model.SetTokenCallback(func(string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})
	po := []llama.PredictOption{
		llama.SetTokens(params.MaxTokens),
		llama.SetThreads(s.threads),
		llama.SetTemperature(float32(params.Temperature)),
		llama.SetTopP(float32(params.TopP)),
		llama.SetTopK(params.TopK),
		llama.SetPenalty(float32(params.RepeatPenalty)),
	}
	if len(params.Stop) > 0 {
		po = append(po, llama.SetStopWords(params.Stop...))
	}
	text, err := s.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return text, nil
}

func (s *llamaSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}
