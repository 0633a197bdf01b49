package service

import (
	"time"

	"simplegen/internal/generator"
)

// Unload initiates a graceful drain of a model instance and removes it.
// New enqueues are rejected while draining; in-flight work gets up to
// drainTimeout to finish before the generator is closed anyway.
func (s *Service) Unload(modelID string) error {
	if modelID == "" {
		return ErrModelNotFound("(unspecified)")
	}
	s.mu.Lock()
	inst := s.instances[modelID]
	if inst == nil {
		s.mu.Unlock()
		return ErrModelNotFound(modelID)
	}
	inst.State = StateDraining
	s.mu.Unlock()
	s.publisher.Publish(Event{Name: "unload_start", ModelID: modelID, Fields: map[string]any{}})

	deadline := time.Now().Add(s.drainTimeout)
	for {
		s.mu.RLock()
		qlen := len(inst.queueCh)
		inflight := len(inst.genCh)
		s.mu.RUnlock()
		if inflight == 0 && qlen == 0 {
			break
		}
		if time.Now().After(deadline) {
			s.publisher.Publish(Event{Name: "unload_timeout", ModelID: modelID, Fields: map[string]any{"inflight": inflight, "queue": qlen}})
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.mu.Lock()
	var gen *generator.Generator
	if inst2 := s.instances[modelID]; inst2 != nil {
		// Memory is accounted only once the load succeeds, so a still-loading
		// instance has nothing to give back.
		if inst2.Gen != nil {
			s.usedEstMB -= inst2.EstMemMB
			if s.usedEstMB < 0 {
				s.usedEstMB = 0
			}
		}
		gen = inst2.Gen
	}
	delete(s.instances, modelID)
	s.mu.Unlock()

	if gen != nil {
		_ = gen.Close()
	}
	s.publisher.Publish(Event{Name: "unload_done", ModelID: modelID, Fields: map[string]any{}})
	return nil
}

// Close unloads every instance; used on shutdown.
func (s *Service) Close() error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		_ = s.Unload(id)
	}
	return nil
}
