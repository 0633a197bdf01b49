//go:build !llama

package runtime

// This file provides a no-CGO stub for the llama runtime. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.
// The real backend lives in llama.go (tagged 'llama').

import (
	"context"

	"simplegen/internal/genconfig"
)

type llamaRuntime struct{}

// NewLlamaRuntime returns a stub that satisfies Runtime but refuses to load
// models without the 'llama' build tag. This avoids any mocked behavior in
// binaries built without CGO support.
func NewLlamaRuntime() Runtime { return &llamaRuntime{} }

type llamaSession struct{}

func (r *llamaRuntime) Load(modelPath string, opts LoadOptions) (Session, error) {
	return nil, ErrNotBuilt("llama support not built (missing 'llama' build tag)")
}

func (s *llamaSession) Generate(ctx context.Context, prompts []string, p genconfig.Params) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return nil, ErrNotBuilt("llama support not built (missing 'llama' build tag)")
}

func (s *llamaSession) Warmup(ctx context.Context) error {
	return ErrNotBuilt("llama support not built (missing 'llama' build tag)")
}

func (s *llamaSession) Close() error { return nil }
