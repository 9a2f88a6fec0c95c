package completion

import (
	"context"
	"fmt"
	"sync"

	"vetter/internal/models"
)

// StubReply is one scripted answer of a StubClient.
type StubReply struct {
	Content      string
	FinishReason string
	Err          error
}

// StubClient answers without any network call. Scripted replies are served in
// order; once they run out it echoes the last user message.
type StubClient struct {
	mu      sync.Mutex
	script  []StubReply
	calls   int
	history [][]models.Message
}

func NewStubClient(script ...StubReply) *StubClient {
	return &StubClient{script: script}
}

func (c *StubClient) Complete(ctx context.Context, messages []models.Message) (*Choice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	sent := make([]models.Message, len(messages))
	copy(sent, messages)
	c.history = append(c.history, sent)

	if len(c.script) > 0 {
		next := c.script[0]
		c.script = c.script[1:]
		if next.Err != nil {
			return nil, next.Err
		}
		reason := next.FinishReason
		if reason == "" {
			reason = FinishStop
		}
		return &Choice{Message: models.AssistantMessage(next.Content), FinishReason: reason}, nil
	}

	reply := "Hello! How can I help?"
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			reply = fmt.Sprintf("You said: %s", messages[i].Content)
			break
		}
	}
	return &Choice{Message: models.AssistantMessage(reply), FinishReason: FinishStop}, nil
}

// Calls is the number of Complete invocations so far.
func (c *StubClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Requests returns the transcripts sent on each call.
func (c *StubClient) Requests() [][]models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]models.Message, len(c.history))
	copy(out, c.history)
	return out
}
