package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`

	// Runtime backend knobs.
	ContextSize int  `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int  `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers   int  `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	MMap        bool `json:"mmap" yaml:"mmap" toml:"mmap"`
	MLock       bool `json:"mlock" yaml:"mlock" toml:"mlock"`
	Warmup      bool `json:"warmup" yaml:"warmup" toml:"warmup"`

	// Optional LoRA adapter attached at model load.
	LoraPath  string  `json:"lora_path" yaml:"lora_path" toml:"lora_path"`
	LoraBase  string  `json:"lora_base" yaml:"lora_base" toml:"lora_base"`
	LoraScale float64 `json:"lora_scale" yaml:"lora_scale" toml:"lora_scale"`

	// Batch settings. BatchSize 0 enables the adaptive batch-size search
	// starting from StartBatchSize.
	BatchSize      int `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	StartBatchSize int `json:"start_batch_size" yaml:"start_batch_size" toml:"start_batch_size"`

	// Conversation prompt template family (chatml, llama3, plain).
	TemplateFamily string `json:"template_family" yaml:"template_family" toml:"template_family"`

	// Memory budget across loaded models (0 = unlimited) and reserved margin.
	MemBudgetMB int `json:"mem_budget_mb" yaml:"mem_budget_mb" toml:"mem_budget_mb"`
	MemMarginMB int `json:"mem_margin_mb" yaml:"mem_margin_mb" toml:"mem_margin_mb"`

	// Admission control.
	MaxQueueDepth int           `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWait       time.Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait"`

	// Chat session TTL for the HTTP API.
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl" toml:"session_ttl"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
