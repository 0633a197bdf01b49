// Package service manages generator instances: ensure-on-first-use loading,
// per-instance admission queues, and LRU eviction under a memory budget.
package service

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"simplegen/internal/generator"
	"simplegen/internal/runtime"
	"simplegen/pkg/types"
)

// State represents lifecycle state of the service/instances.
type State string

const (
	StateReady    State = "ready"
	StateLoading  State = "loading"
	StateError    State = "error"
	StateDraining State = "draining"
)

// Instance is a live generator (one per model id).
type Instance struct {
	ID       string
	State    State
	LastUsed time.Time
	EstMemMB int
	Gen      *generator.Generator
	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots
	// loaded is closed when the load attempt settles; concurrent
	// EnsureInstance callers wait on it instead of loading again.
	loaded chan struct{}
}

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

// Config encapsulates all tunables for Service construction.
type Config struct {
	Registry     []types.Model
	DefaultModel string
	BudgetMB     int
	MarginMB     int

	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration

	// Per-generator settings applied to every loaded model.
	ContextSize    int
	Threads        int
	GPULayers      int
	MMap           bool
	MLock          bool
	Warmup         bool
	LoraPath       string
	LoraBase       string
	LoraScale      float64
	StartBatchSize int
	TemplateFamily string

	Runtime   runtime.Runtime
	Publisher EventPublisher
	Logger    zerolog.Logger
}

// Service owns the registry and the set of loaded generator instances.
type Service struct {
	mu           sync.RWMutex
	state        State
	err          string
	registry     []types.Model
	defaultModel string
	budgetMB     int
	marginMB     int
	instances    map[string]*Instance
	usedEstMB    int

	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	cfg       Config
	rt        runtime.Runtime
	publisher EventPublisher
	log       zerolog.Logger

	startTime      time.Time
	evictionsTotal uint64
	loadsTotal     uint64
}

// New constructs a Service from Config, applying package defaults for
// unset queue and drain settings.
func New(cfg Config) *Service {
	s := &Service{
		state:        StateLoading,
		registry:     cfg.Registry,
		defaultModel: cfg.DefaultModel,
		budgetMB:     cfg.BudgetMB,
		marginMB:     cfg.MarginMB,
		instances:    make(map[string]*Instance),
		cfg:          cfg,
		rt:           cfg.Runtime,
		publisher:    cfg.Publisher,
		log:          cfg.Logger,
		startTime:    time.Now(),
	}
	if s.rt == nil {
		s.rt = runtime.NewLlamaRuntime()
	}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	s.maxQueueDepth = cfg.MaxQueueDepth
	if s.maxQueueDepth <= 0 {
		s.maxQueueDepth = defaultMaxQueueDepth
	}
	s.maxWait = cfg.MaxWait
	if s.maxWait <= 0 {
		s.maxWait = defaultMaxWait
	}
	s.drainTimeout = cfg.DrainTimeout
	if s.drainTimeout <= 0 {
		s.drainTimeout = defaultDrainTimeout
	}
	return s
}

// Ready reports whether at least one instance can serve requests.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateError {
		return false
	}
	for _, inst := range s.instances {
		if inst.State == StateReady {
			return true
		}
	}
	return false
}

// ListModels returns a copy of the registry.
func (s *Service) ListModels() []types.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Model, len(s.registry))
	copy(out, s.registry)
	return out
}

// getModelByID finds a model in the registry by id.
func (s *Service) getModelByID(id string) (types.Model, bool) {
	for _, mdl := range s.registry {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

// resolveModelID maps an empty id to the configured default.
func (s *Service) resolveModelID(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if s.defaultModel == "" {
		return "", modelNotFoundError{id: "(unspecified)"}
	}
	return s.defaultModel, nil
}

// estimateMemMB estimates the loaded footprint from the weights file size.
// Returns a conservative 1MB minimum so budget checks never divide by zero.
func estimateMemMB(mdl types.Model) int {
	fi, err := os.Stat(mdl.Path)
	if err != nil {
		return 1
	}
	mb := int(fi.Size() / (1024 * 1024))
	if mb <= 0 {
		mb = 1
	}
	return mb
}
