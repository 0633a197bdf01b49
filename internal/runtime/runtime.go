package runtime

import (
	"context"

	"simplegen/internal/genconfig"
)

// Runtime abstracts the model backend used by the generator. Concrete
// implementations (llama.cpp) satisfy this interface; builds without the
// 'llama' tag get a stub that fails fast.
type Runtime interface {
	// Load opens the model at modelPath and returns a live session.
	Load(modelPath string, opts LoadOptions) (Session, error)
}

// Session is a loaded model ready to generate.
type Session interface {
	// Generate runs one batch of prompts and returns one decoded output per
	// prompt, in order. Implementations must return when the context is
	// canceled and must surface allocation failures as out-of-memory errors
	// (see IsOutOfMemory).
	Generate(ctx context.Context, prompts []string, p genconfig.Params) ([]string, error)
	// Warmup runs a throwaway generation so compiled kernels and caches are
	// hot before the first real request.
	Warmup(ctx context.Context) error
	// Close releases model resources.
	Close() error
}

// LoadOptions carries backend knobs resolved from service configuration.
type LoadOptions struct {
	ContextSize int
	Threads     int
	GPULayers   int
	// LoRA adapter weights merged into the base model at load time.
	LoraPath  string
	LoraBase  string
	LoraScale float64
	MMap      bool
	MLock     bool
}
