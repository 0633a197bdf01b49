// Package generator wraps a model runtime with sensible generation defaults,
// batch submission and adaptive batch sizing.
package generator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"simplegen/internal/genconfig"
	"simplegen/internal/runtime"
)

// Default initial batch size for the adaptive search when the caller does
// not request an explicit size.
const defaultStartBatchSize = 8

// Config carries everything needed to load one model into a Generator.
type Config struct {
	// ModelPath points at the model weights (*.gguf).
	ModelPath string
	// ConfigDir holds config.json / generation_config.json. Defaults to the
	// directory of ModelPath.
	ConfigDir string

	ContextSize int
	Threads     int
	GPULayers   int
	MMap        bool
	MLock       bool

	// Optional LoRA adapter merged into the base weights at load time.
	LoraPath  string
	LoraBase  string
	LoraScale float64

	// Warmup runs a single throwaway generation after load.
	Warmup bool

	// StartBatchSize seeds the adaptive batch-size search. Zero means the
	// package default.
	StartBatchSize int

	// TemplateFamily selects the conversation prompt template (chatml,
	// llama3, plain). Empty renders a plain transcript.
	TemplateFamily string

	Logger zerolog.Logger
}

// Generator owns a loaded model session plus the resolved metadata and
// published generation defaults for it.
type Generator struct {
	cfg       Config
	sess      runtime.Session
	meta      genconfig.Meta
	published *genconfig.Published
	log       zerolog.Logger
}

// New loads the model described by cfg through rt. Model metadata and
// published generation defaults are read from ConfigDir; both are optional
// on disk and replaced by fallbacks when absent.
func New(ctx context.Context, cfg Config, rt runtime.Runtime) (*Generator, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	dir := cfg.ConfigDir
	if dir == "" {
		dir = filepath.Dir(cfg.ModelPath)
	}
	log := cfg.Logger.With().Str("model", cfg.ModelPath).Logger()

	meta, err := genconfig.LoadMeta(dir)
	if err != nil {
		return nil, fmt.Errorf("model metadata: %w", err)
	}
	if meta.KindAssumed {
		log.Warn().Msg("config does not declare is_encoder_decoder; assuming a causal model")
	}
	if meta.PadFromEOS {
		log.Info().Int("eos_token_id", meta.EOSTokenID).Msg("no pad token published; padding with EOS")
	}

	pub, err := genconfig.LoadPublished(dir)
	if err != nil {
		return nil, fmt.Errorf("published generation config: %w", err)
	}
	if pub == nil {
		log.Debug().Msg("no published generation defaults; using built-in fallbacks")
	}

	sess, err := rt.Load(cfg.ModelPath, runtime.LoadOptions{
		ContextSize: cfg.ContextSize,
		Threads:     cfg.Threads,
		GPULayers:   cfg.GPULayers,
		LoraPath:    cfg.LoraPath,
		LoraBase:    cfg.LoraBase,
		LoraScale:   cfg.LoraScale,
		MMap:        cfg.MMap,
		MLock:       cfg.MLock,
	})
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if cfg.LoraPath != "" {
		log.Info().Str("lora", cfg.LoraPath).Msg("attached adapter weights")
	}

	g := &Generator{cfg: cfg, sess: sess, meta: meta, published: pub, log: log}
	if cfg.Warmup {
		if err := sess.Warmup(ctx); err != nil {
			_ = sess.Close()
			return nil, fmt.Errorf("warmup: %w", err)
		}
		log.Debug().Msg("warmup complete")
	}
	modelLoadsTotal.Inc()
	return g, nil
}

// closedError reports use of a generator whose session was released, e.g.
// by eviction of its model instance.
type closedError struct{ model string }

func (e closedError) Error() string { return "generator closed: " + e.model }

// IsClosed reports whether err indicates a closed generator.
func IsClosed(err error) bool {
	_, ok := err.(closedError)
	return ok
}

// Meta returns the resolved model metadata.
func (g *Generator) Meta() genconfig.Meta { return g.meta }

// Kind reports whether the model is causal or seq2seq.
func (g *Generator) Kind() genconfig.Kind { return g.meta.Kind }

// Params resolves generation arguments for this model: built-in fallbacks,
// then the model's published defaults, then caller options.
func (g *Generator) Params(opts ...genconfig.Option) genconfig.Params {
	return genconfig.Resolve(g.published, opts...)
}

// Close releases the underlying model session.
func (g *Generator) Close() error {
	if g.sess == nil {
		return nil
	}
	err := g.sess.Close()
	g.sess = nil
	return err
}
