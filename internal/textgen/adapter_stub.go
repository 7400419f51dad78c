//go:build !llama

package textgen

// No-CGO stub compiled when the 'llama' build tag is absent. It keeps
// default builds and CI free of CGO; the stub fails fast instead of
// mocking inference.

var llamaBuilt = false

type llamaAdapter struct{}

// NewLlamaAdapter returns a stub adapter that refuses to start.
func NewLlamaAdapter(ctxSize, threads int) Adapter {
	return &llamaAdapter{}
}

func (a *llamaAdapter) Start(modelPath string) (Session, error) {
	return nil, errUnavailable("llama support not built (missing 'llama' build tag)")
}
