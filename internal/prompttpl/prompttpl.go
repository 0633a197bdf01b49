// Package prompttpl renders conversation transcripts into the prompt format
// a model family expects. It covers the common local-model families; anything
// unrecognized falls back to a plain role-prefixed transcript.
package prompttpl

import "strings"

// Message is a single conversation turn.
type Message struct {
	Role    string
	Content string
}

// RenderOptions selects the template family and rendering behavior.
type RenderOptions struct {
	// Family names the template dialect: chatml, llama3, plain. Empty or
	// unknown values render the plain transcript.
	Family string
	// AddGenerationPrompt appends the assistant header so the model starts
	// a fresh reply.
	AddGenerationPrompt bool
	BOSToken            string
	Messages            []Message
}

// Render formats the messages for the chosen family.
func Render(opts RenderOptions) string {
	switch strings.ToLower(strings.TrimSpace(opts.Family)) {
	case "chatml", "qwen", "qwen2":
		return renderChatML(opts)
	case "llama3", "llama-3":
		return renderLlama3(opts)
	default:
		return renderPlain(opts)
	}
}

func renderChatML(opts RenderOptions) string {
	var b strings.Builder
	for _, msg := range opts.Messages {
		b.WriteString("<|im_start|>")
		b.WriteString(msg.Role)
		b.WriteString("\n")
		b.WriteString(msg.Content)
		b.WriteString("<|im_end|>\n")
	}
	if opts.AddGenerationPrompt {
		b.WriteString("<|im_start|>assistant\n")
	}
	return b.String()
}

func renderLlama3(opts RenderOptions) string {
	var b strings.Builder
	if opts.BOSToken != "" {
		b.WriteString(opts.BOSToken)
	}
	for _, msg := range opts.Messages {
		b.WriteString("<|start_header_id|>")
		b.WriteString(msg.Role)
		b.WriteString("<|end_header_id|>\n\n")
		b.WriteString(strings.TrimSpace(msg.Content))
		b.WriteString("<|eot_id|>")
	}
	if opts.AddGenerationPrompt {
		b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	}
	return b.String()
}

func renderPlain(opts RenderOptions) string {
	var b strings.Builder
	for _, msg := range opts.Messages {
		switch msg.Role {
		case "system":
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		case "user":
			b.WriteString("User: ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		case "assistant":
			b.WriteString("Assistant: ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		default:
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}
	if opts.AddGenerationPrompt {
		b.WriteString("Assistant:")
	}
	return b.String()
}
