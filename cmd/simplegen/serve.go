package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"simplegen/internal/config"
	"simplegen/internal/httpapi"
	"simplegen/internal/registry"
	"simplegen/internal/service"
)

func buildServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Example: "  simplegen serve --models-dir ~/models/llm --default-model tinyllama.Q4_K_M.gguf\n" +
			"  simplegen serve --config simplegen.yaml",
		RunE: runServe,
	}
	f := cmd.Flags()
	f.String("addr", "", "HTTP listen address, e.g. :8080 (defaults SIMPLEGEN_ADDR or :8080)")
	f.String("models-dir", "", "Directory to scan for *.gguf model files")
	f.String("default-model", "", "Default model id when request omits model")
	f.Int("mem-budget-mb", 0, "Memory budget in MB for all instances (0=unlimited)")
	f.Int("mem-margin-mb", 0, "Reserved memory margin in MB to keep free")
	f.Int("context-size", 0, "Model context window size (backend default when 0)")
	f.Int("threads", 0, "Inference threads (backend default when 0)")
	f.Int("gpu-layers", 0, "Layers to offload to GPU")
	f.Bool("mmap", true, "Memory-map model weights")
	f.Bool("mlock", false, "Lock model weights in RAM")
	f.Bool("warmup", false, "Run a warmup generation after each model load")
	f.String("lora", "", "LoRA adapter file to attach at load")
	f.String("lora-base", "", "Base weights for LoRA when quantized")
	f.Float64("lora-scale", 0, "LoRA adapter scale factor")
	f.Int("start-batch-size", 0, "Starting batch size for the adaptive search")
	f.String("template-family", "", "Chat prompt template family: chatml|llama3|plain")
	f.Int("max-queue-depth", 0, "Per-model request queue depth")
	f.Duration("max-wait", 0, "Max time a request waits for an admission slot")
	f.Duration("session-ttl", 0, "Idle TTL for chat sessions")
	f.Int64("max-body-bytes", 0, "Max JSON request body size in bytes")
	f.Bool("cors", false, "Enable permissive CORS for browser clients")
	return cmd
}

// applyFlagOverrides lets explicitly set flags win over config file values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Addr, _ = f.GetString("addr")
	}
	if f.Changed("models-dir") {
		cfg.ModelsDir, _ = f.GetString("models-dir")
	}
	if f.Changed("default-model") {
		cfg.DefaultModel, _ = f.GetString("default-model")
	}
	if f.Changed("mem-budget-mb") {
		cfg.MemBudgetMB, _ = f.GetInt("mem-budget-mb")
	}
	if f.Changed("mem-margin-mb") {
		cfg.MemMarginMB, _ = f.GetInt("mem-margin-mb")
	}
	if f.Changed("context-size") {
		cfg.ContextSize, _ = f.GetInt("context-size")
	}
	if f.Changed("threads") {
		cfg.Threads, _ = f.GetInt("threads")
	}
	if f.Changed("gpu-layers") {
		cfg.GPULayers, _ = f.GetInt("gpu-layers")
	}
	if f.Changed("mmap") {
		cfg.MMap, _ = f.GetBool("mmap")
	}
	if f.Changed("mlock") {
		cfg.MLock, _ = f.GetBool("mlock")
	}
	if f.Changed("warmup") {
		cfg.Warmup, _ = f.GetBool("warmup")
	}
	if f.Changed("lora") {
		cfg.LoraPath, _ = f.GetString("lora")
	}
	if f.Changed("lora-base") {
		cfg.LoraBase, _ = f.GetString("lora-base")
	}
	if f.Changed("lora-scale") {
		cfg.LoraScale, _ = f.GetFloat64("lora-scale")
	}
	if f.Changed("start-batch-size") {
		cfg.StartBatchSize, _ = f.GetInt("start-batch-size")
	}
	if f.Changed("template-family") {
		cfg.TemplateFamily, _ = f.GetString("template-family")
	}
	if f.Changed("max-queue-depth") {
		cfg.MaxQueueDepth, _ = f.GetInt("max-queue-depth")
	}
	if f.Changed("max-wait") {
		cfg.MaxWait, _ = f.GetDuration("max-wait")
	}
	if f.Changed("session-ttl") {
		cfg.SessionTTL, _ = f.GetDuration("session-ttl")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, &cfg)

	reg, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return err
	}
	if len(reg) == 0 {
		log.Warn().Str("dir", cfg.ModelsDir).Msg("no gguf models found")
	}

	svc := service.New(service.Config{
		Registry:       reg,
		DefaultModel:   cfg.DefaultModel,
		BudgetMB:       cfg.MemBudgetMB,
		MarginMB:       cfg.MemMarginMB,
		MaxQueueDepth:  cfg.MaxQueueDepth,
		MaxWait:        cfg.MaxWait,
		ContextSize:    cfg.ContextSize,
		Threads:        cfg.Threads,
		GPULayers:      cfg.GPULayers,
		MMap:           cfg.MMap,
		MLock:          cfg.MLock,
		Warmup:         cfg.Warmup,
		LoraPath:       cfg.LoraPath,
		LoraBase:       cfg.LoraBase,
		LoraScale:      cfg.LoraScale,
		StartBatchSize: cfg.StartBatchSize,
		TemplateFamily: cfg.TemplateFamily,
		Logger:         log,
	})
	defer svc.Close()

	httpapi.SetLogger(log)
	if n, _ := cmd.Flags().GetInt64("max-body-bytes"); n > 0 {
		httpapi.SetMaxBodyBytes(n)
	}
	if cfg.SessionTTL > 0 {
		httpapi.SetSessionTTL(cfg.SessionTTL)
	}
	if enabled, _ := cmd.Flags().GetBool("cors"); enabled {
		httpapi.SetCORSOptions(true,
			[]string{"*"},
			[]string{http.MethodGet, http.MethodPost, http.MethodOptions},
			[]string{"Accept", "Content-Type", "X-Log-Level"},
		)
	}

	// Base context canceled on shutdown so in-flight generations stop too.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(svc)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Int("models", len(reg)).Msg("simplegen listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
