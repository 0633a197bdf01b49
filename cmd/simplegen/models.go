package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"simplegen/internal/registry"
)

func buildModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Short:   "List *.gguf models found in the models directory",
		Example: "  simplegen models --models-dir ~/models/llm",
		RunE:    runModels,
	}
	cmd.Flags().String("models-dir", "", "Directory to scan for *.gguf model files")
	return cmd
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("models-dir"); v != "" {
		cfg.ModelsDir = v
	}
	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Printf("no gguf models in %s\n", cfg.ModelsDir)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tQUANT\tPATH")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Quant, m.Path)
	}
	return w.Flush()
}
