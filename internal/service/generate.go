package service

import (
	"context"
	"time"

	"simplegen/internal/genconfig"
	"simplegen/internal/generator"
	"simplegen/pkg/types"
)

// Generate resolves the target model, ensures its instance, waits for an
// admission slot and runs the batch generation.
func (s *Service) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	modelID, err := s.resolveModelID(req.Model)
	if err != nil {
		return types.GenerateResponse{}, err
	}
	if err := s.EnsureInstance(ctx, modelID); err != nil {
		return types.GenerateResponse{}, err
	}
	release, err := s.beginGeneration(ctx, modelID)
	if err != nil {
		return types.GenerateResponse{}, err
	}
	defer release()

	s.mu.RLock()
	inst := s.instances[modelID]
	s.mu.RUnlock()
	if inst == nil || inst.Gen == nil {
		return types.GenerateResponse{}, ErrModelNotFound(modelID)
	}

	start := time.Now()
	res, err := inst.Gen.Generate(ctx, generator.Request{
		Texts:     req.Texts,
		Prefix:    req.Prefix,
		PrefixSep: req.PrefixSep,
		BatchSize: req.BatchSize,
		Options:   optionsFromRequest(req),
	})
	if err != nil {
		return types.GenerateResponse{}, err
	}
	return types.GenerateResponse{
		Model:      modelID,
		Outputs:    res.Outputs,
		BatchSize:  res.BatchSize,
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}

// optionsFromRequest maps request overrides onto genconfig options. Zero
// values mean "not supplied" and are skipped, so published and fallback
// defaults still apply. The deprecated max_length field is honored only when
// max_new_tokens is absent.
func optionsFromRequest(req types.GenerateRequest) []genconfig.Option {
	var opts []genconfig.Option
	switch {
	case req.MaxNewTokens > 0:
		opts = append(opts, genconfig.WithMaxNewTokens(req.MaxNewTokens))
	case req.MaxLength > 0:
		opts = append(opts, genconfig.WithMaxLength(req.MaxLength))
	}
	if req.Temperature > 0 {
		opts = append(opts, genconfig.WithTemperature(req.Temperature), genconfig.WithSampling(true))
	}
	if req.TopP > 0 {
		opts = append(opts, genconfig.WithTopP(req.TopP))
	}
	if req.TopK > 0 {
		opts = append(opts, genconfig.WithTopK(req.TopK))
	}
	if req.RepeatPenalty > 0 {
		opts = append(opts, genconfig.WithRepeatPenalty(req.RepeatPenalty))
	}
	if len(req.Stop) > 0 {
		opts = append(opts, genconfig.WithStop(req.Stop...))
	}
	if req.Seed != 0 {
		opts = append(opts, genconfig.WithSeed(req.Seed))
	}
	return opts
}

// NewConversation ensures the model instance and opens a conversation bound
// to its generator. Returns the resolved model id along with the
// conversation.
func (s *Service) NewConversation(ctx context.Context, modelID, system string) (string, *generator.Conversation, error) {
	id, err := s.resolveModelID(modelID)
	if err != nil {
		return "", nil, err
	}
	if err := s.EnsureInstance(ctx, id); err != nil {
		return "", nil, err
	}
	s.mu.RLock()
	inst := s.instances[id]
	s.mu.RUnlock()
	if inst == nil || inst.Gen == nil {
		return "", nil, ErrModelNotFound(id)
	}
	return id, inst.Gen.NewConversation(system), nil
}

// Say runs one conversation turn under the model's admission queue. The
// conversation is rebound to the current instance's generator first: its
// original generator may have been closed by eviction since the last turn.
func (s *Service) Say(ctx context.Context, modelID string, conv *generator.Conversation, message string, opts ...genconfig.Option) (string, error) {
	id, err := s.resolveModelID(modelID)
	if err != nil {
		return "", err
	}
	if err := s.EnsureInstance(ctx, id); err != nil {
		return "", err
	}
	release, err := s.beginGeneration(ctx, id)
	if err != nil {
		return "", err
	}
	defer release()

	s.mu.RLock()
	inst := s.instances[id]
	s.mu.RUnlock()
	if inst == nil || inst.Gen == nil {
		return "", ErrModelNotFound(id)
	}
	conv.Rebind(inst.Gen)
	return conv.Say(ctx, message, opts...)
}
