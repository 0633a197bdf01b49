package generator

import (
	"context"
	"time"

	"simplegen/internal/genconfig"
	"simplegen/internal/runtime"
)

// Request describes one batch generation call.
type Request struct {
	// Texts are the input prompts. Outputs preserve their order.
	Texts []string
	// Prefix, when set, is prepended to every text with PrefixSep between.
	Prefix    string
	PrefixSep string
	// BatchSize fixes the batch size. Zero enables the adaptive search:
	// halve on out-of-memory and retry until a size fits or the floor of 1
	// fails.
	BatchSize int
	// Options override published and fallback generation defaults.
	Options []genconfig.Option
}

// Result carries the decoded outputs plus the batch size that served them.
type Result struct {
	Outputs   []string
	BatchSize int
}

// Generate tokenizes nothing itself: it shapes the prompt list into batches
// and drives the runtime session, honoring the out-of-memory retry contract.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	if g.sess == nil {
		return Result{}, closedError{model: g.cfg.ModelPath}
	}
	if len(req.Texts) == 0 {
		return Result{Outputs: []string{}, BatchSize: req.BatchSize}, nil
	}
	texts := req.Texts
	if req.Prefix != "" {
		sep := req.PrefixSep
		if sep == "" {
			sep = " "
		}
		g.log.Info().Msg("prefix is set; adding it to each text")
		withPrefix := make([]string, len(texts))
		for i, t := range texts {
			withPrefix[i] = req.Prefix + sep + t
		}
		texts = withPrefix
	}

	params := g.Params(req.Options...)

	start := time.Now()
	defer func() {
		generateDuration.Observe(time.Since(start).Seconds())
	}()

	if req.BatchSize > 0 {
		outs, err := g.runBatches(ctx, texts, params, req.BatchSize)
		if err != nil {
			return Result{}, err
		}
		textsGeneratedTotal.Add(float64(len(outs)))
		return Result{Outputs: outs, BatchSize: req.BatchSize}, nil
	}

	// Adaptive path: halve on memory exhaustion until a size succeeds.
	bs := g.cfg.StartBatchSize
	if bs <= 0 {
		bs = defaultStartBatchSize
	}
	if bs > len(texts) {
		bs = len(texts)
	}
	for {
		outs, err := g.runBatches(ctx, texts, params, bs)
		if err == nil {
			textsGeneratedTotal.Add(float64(len(outs)))
			return Result{Outputs: outs, BatchSize: bs}, nil
		}
		if !runtime.IsOutOfMemory(err) {
			return Result{}, err
		}
		if bs <= 1 {
			// Floor reached: nothing smaller to try.
			g.log.Error().Err(err).Msg("out of memory at batch size 1")
			return Result{}, err
		}
		oomBackoffsTotal.Inc()
		next := bs / 2
		g.log.Warn().Int("from", bs).Int("to", next).Msg("out of memory; halving batch size")
		bs = next
	}
}

// runBatches submits texts in fixed-size batches. Out-of-memory errors and
// context cancellation abort the run; any other batch failure is logged and
// replaced by empty outputs so later batches still execute.
func (g *Generator) runBatches(ctx context.Context, texts []string, params genconfig.Params, batchSize int) ([]string, error) {
	outputs := make([]string, 0, len(texts))
	for _, batch := range splitBatches(texts, batchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batchesTotal.Inc()
		outs, err := g.sess.Generate(ctx, batch, params)
		if err != nil {
			if runtime.IsOutOfMemory(err) || ctx.Err() != nil {
				return nil, err
			}
			batchFailuresTotal.Inc()
			g.log.Error().Err(err).Int("batch_len", len(batch)).Msg("batch failed; returning empty outputs for it")
			outputs = append(outputs, make([]string, len(batch))...)
			continue
		}
		outputs = append(outputs, outs...)
	}
	return outputs, nil
}

// splitBatches chunks texts into slices of at most size elements.
func splitBatches(texts []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	batches := make([][]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[start:end])
	}
	return batches
}
