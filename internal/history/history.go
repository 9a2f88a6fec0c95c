package history

import (
	"errors"
	"fmt"

	"vetter/internal/models"
)

// DefaultSystemPrompt seeds a History created without explicit messages.
const DefaultSystemPrompt = "You are a helpful assistant."

// ErrInvalidRole is returned by Add for roles outside the known set.
var ErrInvalidRole = errors.New("invalid message role")

// History owns the transcript of one conversation, the processed watermark
// and the error log. It does no locking; callers serialize access.
type History struct {
	messages  []models.Message
	processed int
	errors    []string
}

// New builds a History from the seed messages, falling back to a single
// system prompt when none are given.
func New(seed ...models.Message) *History {
	if len(seed) == 0 {
		seed = []models.Message{models.SystemMessage(DefaultSystemPrompt)}
	}
	messages := make([]models.Message, len(seed))
	copy(messages, seed)
	return &History{messages: messages}
}

// Add appends a message to the transcript.
func (h *History) Add(role models.Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	h.messages = append(h.messages, models.Message{Role: role, Content: content})
	return nil
}

// Count is the number of messages in the transcript.
func (h *History) Count() int {
	return len(h.messages)
}

// Last returns the most recent message, or false when the transcript is empty.
func (h *History) Last() (models.Message, bool) {
	if len(h.messages) == 0 {
		return models.Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// ShouldQuery reports whether there is unanswered input past the seed prompt.
func (h *History) ShouldQuery() bool {
	return h.Count() > 1 && h.processed < h.Count()
}

// Processed is the number of messages already answered by the model.
func (h *History) Processed() int {
	return h.processed
}

// MarkProcessed advances the watermark to the end of the transcript.
func (h *History) MarkProcessed() {
	if n := h.Count(); n > h.processed {
		h.processed = n
	}
}

func (h *History) RecordError(desc string) {
	h.errors = append(h.errors, desc)
}

func (h *History) Errors() []string {
	out := make([]string, len(h.errors))
	copy(out, h.errors)
	return out
}

// Messages returns a copy of the transcript in conversation order.
func (h *History) Messages() []models.Message {
	out := make([]models.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) String() string {
	return fmt.Sprintf("history(count=%d processed=%d errors=%d)", h.Count(), h.processed, len(h.errors))
}
