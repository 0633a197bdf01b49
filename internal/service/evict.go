package service

import "time"

// evictUntilFits closes LRU idle instances until requiredMB fits within
// budget + margin. Instances with queued or in-flight work are skipped.
func (s *Service) evictUntilFits(requiredMB int) error {
	deadline := time.Now().Add(1 * time.Second)
	for {
		s.mu.Lock()
		fits := (s.usedEstMB + requiredMB + s.marginMB) <= s.budgetMB
		if fits {
			s.mu.Unlock()
			return nil
		}
		var lru *Instance
		for _, inst := range s.instances {
			if inst.State == StateLoading {
				continue
			}
			if len(inst.genCh) > 0 || len(inst.queueCh) > 0 {
				continue
			}
			if lru == nil || inst.LastUsed.Before(lru.LastUsed) {
				lru = inst
			}
		}
		if lru == nil {
			// nothing to evict
			s.mu.Unlock()
			return nil
		}
		delete(s.instances, lru.ID)
		s.usedEstMB -= lru.EstMemMB
		if s.usedEstMB < 0 {
			s.usedEstMB = 0
		}
		s.evictionsTotal++
		gen := lru.Gen
		s.mu.Unlock()

		if gen != nil {
			_ = gen.Close()
		}
		s.publisher.Publish(Event{Name: "evict", ModelID: lru.ID, Fields: map[string]any{"est_mb": lru.EstMemMB}})

		if time.Now().After(deadline) {
			return nil
		}
		// loop to re-check
	}
}
