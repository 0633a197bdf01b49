package types

// GenerateRequest represents a batch text-generation request payload.
type GenerateRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: tinyllama-q4
	Model string `json:"model,omitempty" example:"tinyllama-q4"`
	// Input prompts. Outputs are returned in the same order.
	Texts []string `json:"texts"`
	// Optional prefix prepended to every prompt.
	// example: Translate to French:
	Prefix string `json:"prefix,omitempty" example:"Translate to French:"`
	// Separator placed between the prefix and each prompt. Defaults to a single space.
	// example: " "
	PrefixSep string `json:"prefix_sep,omitempty" example:" "`
	// Requested batch size. 0 or omitted enables the adaptive batch-size search.
	// example: 8
	BatchSize int `json:"batch_size,omitempty" example:"8"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxNewTokens int `json:"max_new_tokens,omitempty" example:"128"`
	// Deprecated: maximum total sequence length. Converted to max_new_tokens server-side.
	// example: 256
	MaxLength int `json:"max_length,omitempty" example:"256"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Repeat penalty applied to recent tokens.
	// example: 1.1
	RepeatPenalty float64 `json:"repeat_penalty,omitempty" example:"1.1"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	// example: ["\n\n","END"]
	Stop []string `json:"stop,omitempty" example:"[\"\\n\\n\",\"END\"]"`
	// Random seed for reproducibility; 0 or omitted lets the server choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
}

// GenerateResponse carries the decoded outputs for a GenerateRequest.
type GenerateResponse struct {
	// Model that served the request.
	// example: tinyllama-q4
	Model string `json:"model" example:"tinyllama-q4"`
	// One output per input text, in input order. Failed batches yield empty strings.
	Outputs []string `json:"outputs"`
	// Batch size the server settled on (after the adaptive search, if any).
	// example: 4
	BatchSize int `json:"batch_size" example:"4"`
	// Wall-clock duration of the generation in milliseconds.
	// example: 1520
	DurationMS int64 `json:"duration_ms" example:"1520"`
}

// ChatRequest represents one turn of a multi-turn conversation.
type ChatRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: tinyllama-q4
	Model string `json:"model,omitempty" example:"tinyllama-q4"`
	// Session id returned by a previous /chat call. Empty starts a new session.
	// example: 6d1f4f54-9e1a-4c8e-93cf-8f4a9a1c2b00
	Session string `json:"session,omitempty" example:"6d1f4f54-9e1a-4c8e-93cf-8f4a9a1c2b00"`
	// Optional system prompt; only honored on the first turn of a session.
	// example: You are a terse assistant.
	System string `json:"system,omitempty" example:"You are a terse assistant."`
	// User message for this turn.
	// example: Hello!
	Message string `json:"message" example:"Hello!"`
	// Maximum number of new tokens to generate for the reply.
	// example: 256
	MaxNewTokens int `json:"max_new_tokens,omitempty" example:"256"`
	// Sampling temperature.
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
}

// ChatResponse carries the assistant reply plus the session id to continue with.
type ChatResponse struct {
	// Session id to pass back on the next turn.
	// example: 6d1f4f54-9e1a-4c8e-93cf-8f4a9a1c2b00
	Session string `json:"session" example:"6d1f4f54-9e1a-4c8e-93cf-8f4a9a1c2b00"`
	// Assistant reply text.
	Reply string `json:"reply"`
	// Full transcript so far, including the new reply.
	Messages []ChatMessage `json:"messages"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// InstanceStatus summarizes a loaded generator instance for /status.
type InstanceStatus struct {
	// ID of the model this instance serves.
	// example: tinyllama-q4
	ModelID string `json:"model_id" example:"tinyllama-q4"`
	// Current lifecycle state of the instance (e.g., loading, ready, draining).
	// example: ready
	State string `json:"state" example:"ready"`
	// Last time this instance served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Estimated memory usage in MB.
	// example: 1200
	EstMemMB int `json:"est_mem_mb" example:"1200"`
	// Current queue length for incoming requests.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of in-flight requests currently being processed.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Loaded/managed generator instances.
	Instances []InstanceStatus `json:"instances"`
	// Memory budget in MB across all instances.
	// example: 8192
	BudgetMB int `json:"budget_mb" example:"8192"`
	// Estimated used memory in MB.
	// example: 2048
	UsedMB int `json:"used_est_mb" example:"2048"`
	// Reserved memory margin in MB.
	// example: 512
	MarginMB int `json:"margin_mb" example:"512"`
	// Overall service state (e.g., loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Last error observed by the service (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Total number of evictions performed to free memory.
	// example: 5
	EvictionsTotal uint64 `json:"evictions_total" example:"5"`
	// Total number of model loads.
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
}
