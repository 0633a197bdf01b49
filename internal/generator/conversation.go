package generator

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"simplegen/internal/genconfig"
	"simplegen/internal/prompttpl"
)

// Conversation is a multi-turn chat helper on top of Generate. It keeps the
// transcript, renders it through the prompt template for the model's family
// and appends assistant replies as they arrive. Not safe for concurrent use.
type Conversation struct {
	g    *Generator
	id   string
	msgs []prompttpl.Message
}

// NewConversation starts a conversation, optionally seeded with a system
// prompt.
func (g *Generator) NewConversation(system string) *Conversation {
	c := &Conversation{g: g, id: uuid.NewString()}
	if system != "" {
		c.msgs = append(c.msgs, prompttpl.Message{Role: "system", Content: system})
	}
	return c
}

// ID returns the stable conversation identifier.
func (c *Conversation) ID() string { return c.id }

// Rebind attaches the conversation to g, keeping the transcript. Used when
// the generator that started the conversation was closed (evicted or
// unloaded) and a fresh instance now serves the model.
func (c *Conversation) Rebind(g *Generator) {
	if g != nil {
		c.g = g
	}
}

// Messages returns a copy of the transcript so far.
func (c *Conversation) Messages() []prompttpl.Message {
	out := make([]prompttpl.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Say appends the user message, generates the assistant reply and records it
// in the transcript.
func (c *Conversation) Say(ctx context.Context, message string, opts ...genconfig.Option) (string, error) {
	c.msgs = append(c.msgs, prompttpl.Message{Role: "user", Content: message})
	prompt := prompttpl.Render(prompttpl.RenderOptions{
		Family:              c.g.cfg.TemplateFamily,
		AddGenerationPrompt: true,
		Messages:            c.msgs,
	})
	res, err := c.g.Generate(ctx, Request{
		Texts:     []string{prompt},
		BatchSize: 1,
		Options:   opts,
	})
	if err != nil {
		// Roll back the user turn so a retry does not duplicate it.
		c.msgs = c.msgs[:len(c.msgs)-1]
		return "", err
	}
	reply := ""
	if len(res.Outputs) > 0 {
		reply = strings.TrimSpace(res.Outputs[0])
	}
	c.msgs = append(c.msgs, prompttpl.Message{Role: "assistant", Content: reply})
	return reply, nil
}
