package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"simplegen/internal/genconfig"
	"simplegen/internal/runtime"
)

// fakeRuntime loads fakeSessions so tests can drive the batching logic
// without a real backend.
type fakeRuntime struct {
	lastOpts runtime.LoadOptions
	session  *fakeSession
	loadErr  error
}

func (f *fakeRuntime) Load(modelPath string, opts runtime.LoadOptions) (runtime.Session, error) {
	f.lastOpts = opts
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.session == nil {
		f.session = &fakeSession{}
	}
	return f.session, nil
}

type fakeSession struct {
	// maxBatch triggers an out-of-memory error for batches larger than it
	// (0 disables the limit, -1 always fails with OOM).
	maxBatch int
	// failSubstr triggers a generic error for any batch containing a prompt
	// with this substring.
	failSubstr string
	batchSizes []int
	lastParams genconfig.Params
	warmups    int
	closed     bool
}

func (s *fakeSession) Generate(ctx context.Context, prompts []string, p genconfig.Params) ([]string, error) {
	s.batchSizes = append(s.batchSizes, len(prompts))
	s.lastParams = p
	if s.maxBatch == -1 || (s.maxBatch > 0 && len(prompts) > s.maxBatch) {
		return nil, runtime.ErrOutOfMemory("ggml: failed to allocate")
	}
	outs := make([]string, len(prompts))
	for i, prompt := range prompts {
		if s.failSubstr != "" && strings.Contains(prompt, s.failSubstr) {
			return nil, errors.New("decode failure")
		}
		outs[i] = "echo:" + prompt
	}
	return outs, nil
}

func (s *fakeSession) Warmup(ctx context.Context) error {
	s.warmups++
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func newTestGenerator(t *testing.T, sess *fakeSession, mutate func(*Config)) *Generator {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.gguf")
	if err := os.WriteFile(modelPath, []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}
	cfg := Config{ModelPath: modelPath, Logger: zerolog.Nop()}
	if mutate != nil {
		mutate(&cfg)
	}
	g, err := New(context.Background(), cfg, &fakeRuntime{session: sess})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGenerateEmptyInput(t *testing.T) {
	g := newTestGenerator(t, &fakeSession{}, nil)
	res, err := g.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(res.Outputs) != 0 {
		t.Fatalf("expected no outputs, got %v", res.Outputs)
	}
}

func TestGenerateFixedBatchPreservesOrder(t *testing.T) {
	sess := &fakeSession{}
	g := newTestGenerator(t, sess, nil)
	texts := []string{"a", "b", "c", "d", "e"}
	res, err := g.Generate(context.Background(), Request{Texts: texts, BatchSize: 2})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []string{"echo:a", "echo:b", "echo:c", "echo:d", "echo:e"}
	if diff := cmp.Diff(want, res.Outputs); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 2, 1}, sess.batchSizes); diff != "" {
		t.Fatalf("batch sizes mismatch (-want +got):\n%s", diff)
	}
	if res.BatchSize != 2 {
		t.Fatalf("expected settled batch size 2, got %d", res.BatchSize)
	}
}

func TestGeneratePrefix(t *testing.T) {
	sess := &fakeSession{}
	g := newTestGenerator(t, sess, nil)
	res, err := g.Generate(context.Background(), Request{
		Texts:     []string{"bonjour"},
		Prefix:    "Translate:",
		PrefixSep: " ",
		BatchSize: 1,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Outputs[0] != "echo:Translate: bonjour" {
		t.Fatalf("expected prefixed prompt, got %q", res.Outputs[0])
	}
}

func TestGenerateAdaptiveHalvesOnOOM(t *testing.T) {
	sess := &fakeSession{maxBatch: 2}
	g := newTestGenerator(t, sess, func(c *Config) { c.StartBatchSize = 8 })
	texts := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	res, err := g.Generate(context.Background(), Request{Texts: texts})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.BatchSize != 2 {
		t.Fatalf("expected search to settle at batch size 2, got %d", res.BatchSize)
	}
	if len(res.Outputs) != len(texts) {
		t.Fatalf("expected %d outputs, got %d", len(texts), len(res.Outputs))
	}
	// 8 OOM, 4 OOM, then 4 batches of 2.
	if diff := cmp.Diff([]int{8, 4, 2, 2, 2, 2}, sess.batchSizes); diff != "" {
		t.Fatalf("batch size sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateAdaptiveFatalAtFloor(t *testing.T) {
	sess := &fakeSession{maxBatch: -1}
	g := newTestGenerator(t, sess, func(c *Config) { c.StartBatchSize = 4 })
	_, err := g.Generate(context.Background(), Request{Texts: []string{"a", "b", "c", "d"}})
	if err == nil || !runtime.IsOutOfMemory(err) {
		t.Fatalf("expected fatal OOM at batch size 1, got %v", err)
	}
	// 4, 2, 1 then give up.
	if diff := cmp.Diff([]int{4, 2, 1}, sess.batchSizes); diff != "" {
		t.Fatalf("batch size sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateExplicitBatchOOMPropagates(t *testing.T) {
	sess := &fakeSession{maxBatch: 2}
	g := newTestGenerator(t, sess, nil)
	_, err := g.Generate(context.Background(), Request{Texts: []string{"a", "b", "c", "d"}, BatchSize: 4})
	if err == nil || !runtime.IsOutOfMemory(err) {
		t.Fatalf("expected OOM to propagate for explicit batch size, got %v", err)
	}
	if len(sess.batchSizes) != 1 {
		t.Fatalf("expected no retry for explicit batch size, got attempts %v", sess.batchSizes)
	}
}

func TestGenerateNonOOMFailureYieldsEmptyBatch(t *testing.T) {
	sess := &fakeSession{failSubstr: "boom"}
	g := newTestGenerator(t, sess, nil)
	res, err := g.Generate(context.Background(), Request{
		Texts:     []string{"a", "b", "boom", "d", "e", "f"},
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []string{"echo:a", "echo:b", "", "", "echo:e", "echo:f"}
	if diff := cmp.Diff(want, res.Outputs); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateCanceledContext(t *testing.T) {
	sess := &fakeSession{}
	g := newTestGenerator(t, sess, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, Request{Texts: []string{"a"}, BatchSize: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerateUsesPublishedDefaults(t *testing.T) {
	sess := &fakeSession{}
	g := newTestGenerator(t, sess, func(c *Config) {
		writeConfig(t, c, "generation_config.json", `{"max_length": 64, "temperature": 0.2}`)
	})
	if _, err := g.Generate(context.Background(), Request{Texts: []string{"a"}, BatchSize: 1}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if sess.lastParams.MaxNewTokens != 64 {
		t.Fatalf("expected legacy max_length=64 as max_new_tokens, got %d", sess.lastParams.MaxNewTokens)
	}
	if sess.lastParams.Temperature != 0.2 {
		t.Fatalf("expected published temperature, got %v", sess.lastParams.Temperature)
	}
}

func TestGenerateCallerOptionsWin(t *testing.T) {
	sess := &fakeSession{}
	g := newTestGenerator(t, sess, func(c *Config) {
		writeConfig(t, c, "generation_config.json", `{"max_new_tokens": 64}`)
	})
	_, err := g.Generate(context.Background(), Request{
		Texts:     []string{"a"},
		BatchSize: 1,
		Options:   []genconfig.Option{genconfig.WithMaxNewTokens(7)},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if sess.lastParams.MaxNewTokens != 7 {
		t.Fatalf("expected caller override max_new_tokens=7, got %d", sess.lastParams.MaxNewTokens)
	}
}

// writeConfig drops a config file next to the model path being built in cfg.
func writeConfig(t *testing.T, c *Config, name, content string) {
	t.Helper()
	dir := filepath.Dir(c.ModelPath)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestNewRunsWarmup(t *testing.T) {
	sess := &fakeSession{}
	_ = newTestGenerator(t, sess, func(c *Config) { c.Warmup = true })
	if sess.warmups != 1 {
		t.Fatalf("expected one warmup call, got %d", sess.warmups)
	}
}

func TestNewPropagatesLoadOptions(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.gguf")
	if err := os.WriteFile(modelPath, []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}
	rt := &fakeRuntime{session: &fakeSession{}}
	g, err := New(context.Background(), Config{
		ModelPath:   modelPath,
		ContextSize: 2048,
		Threads:     6,
		LoraPath:    "/adapters/lora.bin",
		Logger:      zerolog.Nop(),
	}, rt)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	defer g.Close()
	if rt.lastOpts.ContextSize != 2048 || rt.lastOpts.Threads != 6 {
		t.Fatalf("load options not propagated: %+v", rt.lastOpts)
	}
	if rt.lastOpts.LoraPath != "/adapters/lora.bin" {
		t.Fatalf("lora path not propagated: %+v", rt.lastOpts)
	}
}

func TestGenerateAfterCloseReturnsClosedError(t *testing.T) {
	g := newTestGenerator(t, &fakeSession{}, nil)
	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := g.Generate(context.Background(), Request{Texts: []string{"a"}})
	if err == nil || !IsClosed(err) {
		t.Fatalf("expected closed-generator error, got %v", err)
	}
}

func TestSplitBatches(t *testing.T) {
	got := splitBatches([]string{"a", "b", "c"}, 2)
	if len(got) != 2 || len(got[0]) != 2 || len(got[1]) != 1 {
		t.Fatalf("unexpected batches: %v", got)
	}
	got = splitBatches(nil, 2)
	if len(got) != 0 {
		t.Fatalf("expected no batches for empty input, got %v", got)
	}
}
