package textgen

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"imaged/pkg/types"
)

// Sampling defaults and bounds for text requests.
const (
	defaultMaxLength   = 512
	minMaxLength       = 50
	maxMaxLength       = 2048
	defaultTemperature = 0.7
	minTemperature     = 0.1
	maxTemperature     = 2.0
	defaultTopP        = 0.9
	minTopP            = 0.1
	maxTopP            = 1.0
	defaultTopK        = 50
	minTopK            = 1
	maxTopK            = 100
	defaultRepPenalty  = 1.1
	minRepPenalty      = 1.0
	maxRepPenalty      = 2.0
)

// stopWords terminate a completion before it runs into the next turn.
var stopWords = []string{"User:", "\n\n\n"}

// Engine serves prompt and chat completions over a lazily loaded text
// model. The model is loaded once on first use and kept resident; a single
// mutex serializes inference since the runtime is not reentrant.
type Engine struct {
	adapter   Adapter
	modelPath string
	log       zerolog.Logger

	mu      sync.Mutex
	session Session
}

func New(adapter Adapter, modelPath string, log zerolog.Logger) *Engine {
	return &Engine{
		adapter:   adapter,
		modelPath: modelPath,
		log:       log.With().Str("component", "textgen").Logger(),
	}
}

// Available reports whether the configured model file exists on disk.
func (e *Engine) Available() bool {
	if e.modelPath == "" {
		return false
	}
	_, err := os.Stat(e.modelPath)
	return err == nil
}

// ConfigInfo describes the text backend and its tunable parameters.
type ConfigInfo struct {
	Available  bool           `json:"available"`
	ModelPath  string         `json:"model_path"`
	Built      bool           `json:"built"`
	Parameters map[string]any `json:"parameters"`
}

func (e *Engine) Config() ConfigInfo {
	return ConfigInfo{
		Available: e.Available() && llamaBuilt,
		ModelPath: e.modelPath,
		Built:     llamaBuilt,
		Parameters: map[string]any{
			"max_length":         map[string]any{"min": minMaxLength, "max": maxMaxLength, "default": defaultMaxLength},
			"temperature":        map[string]any{"min": minTemperature, "max": maxTemperature, "default": defaultTemperature},
			"top_p":              map[string]any{"min": minTopP, "max": maxTopP, "default": defaultTopP},
			"top_k":              map[string]any{"min": minTopK, "max": maxTopK, "default": defaultTopK},
			"repetition_penalty": map[string]any{"min": minRepPenalty, "max": maxRepPenalty, "default": defaultRepPenalty},
		},
	}
}

// Generate completes a raw prompt.
func (e *Engine) Generate(ctx context.Context, req types.TextGenerateRequest) (types.TextGenerateResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return types.TextGenerateResponse{}, errTextValidation("prompt is required")
	}
	params, err := paramsFrom(req.MaxLength, req.Temperature, req.TopP, req.TopK, req.RepetitionPenalty)
	if err != nil {
		return types.TextGenerateResponse{}, err
	}

	text, err := e.complete(ctx, req.Prompt, params)
	if err != nil {
		return types.TextGenerateResponse{}, err
	}
	return types.TextGenerateResponse{Text: text, Prompt: req.Prompt}, nil
}

// Chat renders the conversation into a single prompt and completes the
// assistant turn.
func (e *Engine) Chat(ctx context.Context, req types.ChatRequest) (types.ChatResponse, error) {
	if len(req.Messages) == 0 {
		return types.ChatResponse{}, errTextValidation("messages are required")
	}
	params, err := paramsFrom(req.MaxLength, req.Temperature, req.TopP, req.TopK, req.RepetitionPenalty)
	if err != nil {
		return types.ChatResponse{}, err
	}

	var b strings.Builder
	for _, m := range req.Messages {
		switch m.Role {
		case "user":
			fmt.Fprintf(&b, "User: %s\n", m.Content)
		case "assistant":
			fmt.Fprintf(&b, "Assistant: %s\n", m.Content)
		default:
			return types.ChatResponse{}, errTextValidation("message role must be user or assistant")
		}
	}
	b.WriteString("Assistant:")

	text, err := e.complete(ctx, b.String(), params)
	if err != nil {
		return types.ChatResponse{}, err
	}

	reply := types.Message{Role: "assistant", Content: text}
	return types.ChatResponse{
		Message:  reply,
		Messages: append(append([]types.Message{}, req.Messages...), reply),
	}, nil
}

func (e *Engine) complete(ctx context.Context, prompt string, params Params) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		if e.modelPath == "" {
			return "", errUnavailable("no text model configured")
		}
		if _, err := os.Stat(e.modelPath); err != nil {
			return "", modelMissingError{path: e.modelPath}
		}
		e.log.Info().Str("model", e.modelPath).Msg("loading text model")
		s, err := e.adapter.Start(e.modelPath)
		if err != nil {
			return "", err
		}
		e.session = s
		e.log.Info().Msg("text model ready")
	}

	text, err := e.session.Complete(ctx, prompt, params)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Close frees the resident session, if any.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	return err
}

func paramsFrom(maxLength int, temperature, topP float64, topK int, repPenalty float64) (Params, error) {
	if maxLength == 0 {
		maxLength = defaultMaxLength
	}
	if temperature == 0 {
		temperature = defaultTemperature
	}
	if topP == 0 {
		topP = defaultTopP
	}
	if topK == 0 {
		topK = defaultTopK
	}
	if repPenalty == 0 {
		repPenalty = defaultRepPenalty
	}

	switch {
	case maxLength < minMaxLength || maxLength > maxMaxLength:
		return Params{}, errTextValidation(fmt.Sprintf("max_length must be between %d and %d", minMaxLength, maxMaxLength))
	case temperature < minTemperature || temperature > maxTemperature:
		return Params{}, errTextValidation(fmt.Sprintf("temperature must be between %g and %g", minTemperature, maxTemperature))
	case topP < minTopP || topP > maxTopP:
		return Params{}, errTextValidation(fmt.Sprintf("top_p must be between %g and %g", minTopP, maxTopP))
	case topK < minTopK || topK > maxTopK:
		return Params{}, errTextValidation(fmt.Sprintf("top_k must be between %d and %d", minTopK, maxTopK))
	case repPenalty < minRepPenalty || repPenalty > maxRepPenalty:
		return Params{}, errTextValidation(fmt.Sprintf("repetition_penalty must be between %g and %g", minRepPenalty, maxRepPenalty))
	}

	return Params{
		MaxTokens:     maxLength,
		Temperature:   temperature,
		TopP:          topP,
		TopK:          topK,
		RepeatPenalty: repPenalty,
		Stop:          stopWords,
	}, nil
}
