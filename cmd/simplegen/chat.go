package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"simplegen/internal/genconfig"
)

func buildChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chat",
		Short:   "Interactive multi-turn chat on a local model",
		Example: "  simplegen chat --model tinyllama.Q4_K_M.gguf --system \"Be terse.\"",
		RunE:    runChat,
	}
	f := cmd.Flags()
	f.String("model", "", "Model id; defaults to the only model in the dir")
	f.String("models-dir", "", "Directory to scan for *.gguf model files")
	f.String("system", "", "System prompt for the conversation")
	f.Int("max-new-tokens", 0, "Maximum number of new tokens per reply")
	f.Float64("temperature", 0, "Sampling temperature")
	f.String("lora", "", "LoRA adapter file to attach at load")
	f.String("lora-base", "", "Base weights for LoRA when quantized")
	f.Int("gpu-layers", 0, "Layers to offload to GPU")
	f.Int("threads", 0, "Inference threads")
	return cmd
}

// chatOptions maps per-reply flags onto generation options.
func chatOptions(cmd *cobra.Command) []genconfig.Option {
	var opts []genconfig.Option
	if n, _ := cmd.Flags().GetInt("max-new-tokens"); n > 0 {
		opts = append(opts, genconfig.WithMaxNewTokens(n))
	}
	if t, _ := cmd.Flags().GetFloat64("temperature"); t > 0 {
		opts = append(opts, genconfig.WithTemperature(t), genconfig.WithSampling(true))
	}
	return opts
}

func runChat(cmd *cobra.Command, args []string) error {
	svc, modelID, err := newCLIService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := signalContext()
	defer cancel()

	system, _ := cmd.Flags().GetString("system")
	opts := chatOptions(cmd)

	_, conv, err := svc.NewConversation(ctx, modelID, system)
	if err != nil {
		return err
	}

	fmt.Printf("chatting with %s (ctrl-d to exit)\n", modelID)
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			fmt.Println()
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		reply, err := svc.Say(ctx, modelID, conv, line, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		fmt.Println(reply)
	}
}
