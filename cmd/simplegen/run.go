package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"simplegen/internal/registry"
	"simplegen/internal/service"
	"simplegen/pkg/types"
)

func buildRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [prompts...]",
		Short: "Generate completions for prompts and print them",
		Example: "  simplegen run --model tinyllama.Q4_K_M.gguf \"Tell me a joke\"\n" +
			"  simplegen run --prefix \"Translate to French:\" \"good morning\" \"thank you\"\n" +
			"  cat prompts.txt | simplegen run -",
		Args: cobra.MinimumNArgs(1),
		RunE: runRun,
	}
	f := cmd.Flags()
	f.String("model", "", "Model id; defaults to the only model in the dir")
	f.String("models-dir", "", "Directory to scan for *.gguf model files")
	f.String("prefix", "", "Prefix prepended to every prompt")
	f.Int("batch-size", 0, "Batch size (0 = adaptive)")
	f.Int("max-new-tokens", 0, "Maximum number of new tokens")
	f.Float64("temperature", 0, "Sampling temperature")
	f.String("lora", "", "LoRA adapter file to attach at load")
	f.String("lora-base", "", "Base weights for LoRA when quantized")
	f.Int("gpu-layers", 0, "Layers to offload to GPU")
	f.Int("threads", 0, "Inference threads")
	return cmd
}

// newCLIService builds a one-shot Service for run/chat commands.
func newCLIService(cmd *cobra.Command) (*service.Service, string, error) {
	log := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	if v, _ := cmd.Flags().GetString("models-dir"); v != "" {
		cfg.ModelsDir = v
	}
	reg, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return nil, "", err
	}
	modelID, _ := cmd.Flags().GetString("model")
	if modelID == "" {
		if cfg.DefaultModel != "" {
			modelID = cfg.DefaultModel
		} else if len(reg) == 1 {
			modelID = reg[0].ID
		} else {
			return nil, "", fmt.Errorf("--model is required when %d models are available", len(reg))
		}
	}
	lora, _ := cmd.Flags().GetString("lora")
	loraBase, _ := cmd.Flags().GetString("lora-base")
	gpuLayers, _ := cmd.Flags().GetInt("gpu-layers")
	threads, _ := cmd.Flags().GetInt("threads")
	if lora == "" {
		lora = cfg.LoraPath
	}
	if loraBase == "" {
		loraBase = cfg.LoraBase
	}
	svc := service.New(service.Config{
		Registry:       reg,
		DefaultModel:   modelID,
		ContextSize:    cfg.ContextSize,
		Threads:        orInt(threads, cfg.Threads),
		GPULayers:      orInt(gpuLayers, cfg.GPULayers),
		MMap:           cfg.MMap,
		MLock:          cfg.MLock,
		LoraPath:       lora,
		LoraBase:       loraBase,
		LoraScale:      cfg.LoraScale,
		StartBatchSize: cfg.StartBatchSize,
		TemplateFamily: cfg.TemplateFamily,
		Logger:         log,
	})
	return svc, modelID, nil
}

func orInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// collectPrompts expands a lone "-" argument into one prompt per stdin line.
func collectPrompts(args []string) ([]string, error) {
	if len(args) != 1 || args[0] != "-" {
		return args, nil
	}
	var prompts []string
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("no prompts on stdin")
	}
	return prompts, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	prompts, err := collectPrompts(args)
	if err != nil {
		return err
	}
	svc, modelID, err := newCLIService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := signalContext()
	defer cancel()

	prefix, _ := cmd.Flags().GetString("prefix")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	maxNew, _ := cmd.Flags().GetInt("max-new-tokens")
	temp, _ := cmd.Flags().GetFloat64("temperature")

	resp, err := svc.Generate(ctx, types.GenerateRequest{
		Model:        modelID,
		Texts:        prompts,
		Prefix:       prefix,
		BatchSize:    batchSize,
		MaxNewTokens: maxNew,
		Temperature:  temp,
	})
	if err != nil {
		return err
	}
	for _, out := range resp.Outputs {
		fmt.Println(out)
	}
	return nil
}
