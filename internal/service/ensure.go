package service

import (
	"context"
	"time"

	"simplegen/internal/generator"
	"simplegen/internal/runtime"
	"simplegen/pkg/types"
)

// EnsureInstance loads a generator for modelID if one is not already ready.
// Loads are single-flight per model: concurrent callers for the same id wait
// on the in-progress load instead of starting their own. When a memory
// budget is configured, idle LRU instances are evicted first so the new
// model fits within budget + margin.
func (s *Service) EnsureInstance(ctx context.Context, modelID string) error {
	mdl, ok := s.getModelByID(modelID)
	if !ok {
		return ErrModelNotFound(modelID)
	}
	reqMB := estimateMemMB(mdl)

	for {
		s.mu.Lock()
		if inst := s.instances[modelID]; inst != nil {
			switch inst.State {
			case StateReady:
				inst.LastUsed = time.Now()
				s.mu.Unlock()
				return nil
			case StateLoading:
				done := inst.loaded
				s.mu.Unlock()
				select {
				case <-done:
					// Load settled one way or the other; re-check.
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			default: // draining
				s.mu.Unlock()
				return ErrTooBusy(modelID)
			}
		}
		s.mu.Unlock()

		if s.budgetMB > 0 {
			if err := s.evictUntilFits(reqMB); err != nil {
				return err
			}
		}

		s.mu.Lock()
		if s.instances[modelID] != nil {
			// Another caller claimed the load between checks.
			s.mu.Unlock()
			continue
		}
		inst := &Instance{
			ID:       modelID,
			State:    StateLoading,
			LastUsed: time.Now(),
			EstMemMB: reqMB,
			genCh:    make(chan struct{}, 1),
			queueCh:  make(chan struct{}, s.maxQueueDepth),
			loaded:   make(chan struct{}),
		}
		s.instances[modelID] = inst
		s.state = StateLoading
		s.err = ""
		s.mu.Unlock()

		return s.loadInstance(ctx, mdl, inst, reqMB)
	}
}

// loadInstance runs the actual generator load for an instance this caller
// claimed. inst.loaded is closed exactly once, whatever the outcome.
func (s *Service) loadInstance(ctx context.Context, mdl types.Model, inst *Instance, reqMB int) error {
	s.publisher.Publish(Event{Name: "load_start", ModelID: mdl.ID, Fields: map[string]any{"est_mb": reqMB}})

	gen, err := generator.New(ctx, generator.Config{
		ModelPath:      mdl.Path,
		ContextSize:    s.cfg.ContextSize,
		Threads:        s.cfg.Threads,
		GPULayers:      s.cfg.GPULayers,
		MMap:           s.cfg.MMap,
		MLock:          s.cfg.MLock,
		Warmup:         s.cfg.Warmup,
		LoraPath:       s.cfg.LoraPath,
		LoraBase:       s.cfg.LoraBase,
		LoraScale:      s.cfg.LoraScale,
		StartBatchSize: s.cfg.StartBatchSize,
		TemplateFamily: s.cfg.TemplateFamily,
		Logger:         s.log,
	}, s.rt)
	if err != nil {
		s.mu.Lock()
		// Only remove the instance this caller owns; an unload may have
		// already replaced or dropped it.
		if s.instances[mdl.ID] == inst {
			delete(s.instances, mdl.ID)
		}
		s.state = StateError
		s.err = err.Error()
		close(inst.loaded)
		s.mu.Unlock()
		s.publisher.Publish(Event{Name: "load_error", ModelID: mdl.ID, Fields: map[string]any{"error": err.Error()}})
		if runtime.IsNotBuilt(err) {
			return ErrDependencyUnavailable(err.Error())
		}
		return err
	}

	s.mu.Lock()
	if s.instances[mdl.ID] != inst {
		// Unloaded while loading; do not resurrect the instance.
		close(inst.loaded)
		s.mu.Unlock()
		_ = gen.Close()
		return ErrTooBusy(mdl.ID)
	}
	inst.Gen = gen
	inst.State = StateReady
	inst.LastUsed = time.Now()
	s.usedEstMB += reqMB
	s.state = StateReady
	s.err = ""
	s.loadsTotal++
	close(inst.loaded)
	s.mu.Unlock()
	s.publisher.Publish(Event{Name: "load_done", ModelID: mdl.ID, Fields: map[string]any{}})
	return nil
}
