package genconfig

// Params captures the generation arguments handed to the runtime backend.
type Params struct {
	MaxNewTokens  int
	Temperature   float64
	TopP          float64
	TopK          int
	RepeatPenalty float64
	Seed          int64
	Stop          []string
	DoSample      bool
	NumBeams      int
}

// Option mutates Params. Caller-supplied options always win over model
// published values and built-in fallbacks.
type Option func(p *Params)

// Defaults returns the built-in fallback parameters used when neither the
// model publishes a value nor the caller supplies one. Sampling values follow
// llama.cpp conventions; the 20-token ceiling matches the classic open-end
// generation fallback.
func Defaults() Params {
	return Params{
		MaxNewTokens:  20,
		Temperature:   0.8,
		TopP:          0.95,
		TopK:          40,
		RepeatPenalty: 1.1,
		Seed:          -1,
		NumBeams:      1,
	}
}

// Resolve merges generation arguments by precedence: built-in fallbacks,
// then the model's published defaults, then caller options. The max token
// count is rebuilt from the published legacy max_length (or the 20-token
// fallback when absent); a published max_new_tokens is discarded. Caller
// options always win.
func Resolve(pub *Published, opts ...Option) Params {
	p := Defaults()
	if pub != nil {
		pub.apply(&p)
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.MaxNewTokens < 1 {
		p.MaxNewTokens = 1
	}
	return p
}

// WithMaxNewTokens sets the number of new tokens to generate.
func WithMaxNewTokens(n int) Option {
	return func(p *Params) {
		p.MaxNewTokens = n
	}
}

// WithMaxLength sets the deprecated maximum-total-length argument. It is
// converted to max_new_tokens, matching the legacy rename performed on
// published configs.
func WithMaxLength(n int) Option {
	return func(p *Params) {
		p.MaxNewTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(p *Params) {
		p.Temperature = t
	}
}

// WithTopP sets the nucleus sampling probability.
func WithTopP(tp float64) Option {
	return func(p *Params) {
		p.TopP = tp
	}
}

// WithTopK sets the top-K sampling cutoff.
func WithTopK(k int) Option {
	return func(p *Params) {
		p.TopK = k
	}
}

// WithRepeatPenalty sets the repetition penalty.
func WithRepeatPenalty(rp float64) Option {
	return func(p *Params) {
		p.RepeatPenalty = rp
	}
}

// WithSeed sets the sampling seed.
func WithSeed(s int64) Option {
	return func(p *Params) {
		p.Seed = s
	}
}

// WithStop sets the stop sequences.
func WithStop(stop ...string) Option {
	return func(p *Params) {
		p.Stop = stop
	}
}

// WithSampling toggles sampling vs greedy decoding.
func WithSampling(b bool) Option {
	return func(p *Params) {
		p.DoSample = b
	}
}

// WithNumBeams sets the beam count for beam-search capable backends.
func WithNumBeams(n int) Option {
	return func(p *Params) {
		p.NumBeams = n
	}
}
