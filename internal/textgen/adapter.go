package textgen

import "context"

// Adapter abstracts the text-model runtime so default builds stay CGO-free.
type Adapter interface {
	// Start loads the model at modelPath and returns a reusable session.
	Start(modelPath string) (Session, error)
}

// Session is a loaded text model. Implementations must honor ctx
// cancellation inside Complete.
type Session interface {
	Complete(ctx context.Context, prompt string, params Params) (string, error)
	Close() error
}

// Params are the sampling parameters for one completion.
type Params struct {
	MaxTokens     int
	Temperature   float64
	TopP          float64
	TopK          int
	RepeatPenalty float64
	Stop          []string
}
