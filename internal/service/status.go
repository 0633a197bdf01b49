package service

import (
	"time"

	"simplegen/pkg/types"
)

// Status builds a detailed status response for /status.
func (s *Service) Status() types.StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := types.StatusResponse{
		BudgetMB:       s.budgetMB,
		UsedMB:         s.usedEstMB,
		MarginMB:       s.marginMB,
		State:          string(s.state),
		LastError:      s.err,
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		EvictionsTotal: s.evictionsTotal,
		LoadsTotal:     s.loadsTotal,
	}
	resp.Instances = make([]types.InstanceStatus, 0, len(s.instances))
	for _, inst := range s.instances {
		resp.Instances = append(resp.Instances, types.InstanceStatus{
			ModelID:       inst.ID,
			State:         string(inst.State),
			LastUsed:      inst.LastUsed.Unix(),
			EstMemMB:      inst.EstMemMB,
			QueueLen:      len(inst.queueCh),
			Inflight:      len(inst.genCh),
			MaxQueueDepth: cap(inst.queueCh),
		})
	}
	return resp
}
