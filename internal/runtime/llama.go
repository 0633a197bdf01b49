//go:build llama

package runtime

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"simplegen/internal/genconfig"
)

// llamaRuntime loads models through the go-llama.cpp CGO bindings.
type llamaRuntime struct{}

// NewLlamaRuntime returns the llama.cpp-backed runtime.
func NewLlamaRuntime() Runtime { return &llamaRuntime{} }

type llamaSession struct {
	model   *llama.LLama
	threads int
}

func (r *llamaRuntime) Load(modelPath string, opts LoadOptions) (Session, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(zn(opts.ContextSize, llama.DefaultOptions.ContextSize)),
		llama.SetMMap(opts.MMap),
		llama.SetMlock(opts.MLock),
	}
	if opts.GPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(opts.GPULayers))
	}
	if opts.LoraPath != "" {
		mo = append(mo, llama.SetLoraAdapter(opts.LoraPath))
		if opts.LoraBase != "" {
			mo = append(mo, llama.SetLoraBase(opts.LoraBase))
		}
	}
	m, err := llama.New(modelPath, mo...)
	if err != nil {
		if IsOutOfMemory(err) {
			return nil, ErrOutOfMemory(err.Error())
		}
		return nil, err
	}
	return &llamaSession{model: m, threads: zn(opts.Threads, llama.DefaultOptions.Threads)}, nil
}

func (s *llamaSession) Generate(ctx context.Context, prompts []string, p genconfig.Params) ([]string, error) {
	if s.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	outputs := make([]string, 0, len(prompts))
	for _, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Cancellation is surfaced through the token callback; Predict has no
		// context parameter of its own.
		s.model.SetTokenCallback(func(tok string) bool {
			select {
			case <-ctx.Done():
				return false
			default:
				return true
			}
		})
		text, err := s.model.Predict(prompt, predictOptions(p, s.threads)...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if IsOutOfMemory(err) {
				return nil, ErrOutOfMemory(err.Error())
			}
			return nil, err
		}
		outputs = append(outputs, text)
	}
	return outputs, nil
}

func (s *llamaSession) Warmup(ctx context.Context) error {
	p := genconfig.Defaults()
	p.MaxNewTokens = 1
	_, err := s.Generate(ctx, []string{" "}, p)
	return err
}

func (s *llamaSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts resolved generation params into go-llama.cpp
// options. Greedy decoding is approximated with a near-zero temperature,
// which is what llama.cpp samplers expect.
func predictOptions(p genconfig.Params, threads int) []llama.PredictOption {
	temp := p.Temperature
	if !p.DoSample {
		temp = 0.01
	}
	po := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxNewTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(zf(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(p.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(temp, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(p.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if p.Seed >= 0 {
		po = append(po, llama.SetSeed(int(p.Seed)))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}
