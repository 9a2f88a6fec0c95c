package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetter/internal/models"
)

func TestNewSeedsSystemPrompt(t *testing.T) {
	h := New()

	require.Equal(t, 1, h.Count())
	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, models.RoleSystem, last.Role)
	assert.Equal(t, DefaultSystemPrompt, last.Content)
	assert.False(t, h.ShouldQuery())
	assert.Zero(t, h.Processed())
	assert.Empty(t, h.Errors())
}

func TestNewCopiesSeed(t *testing.T) {
	seed := []models.Message{models.SystemMessage("be brief"), models.UserMessage("hi")}
	h := New(seed...)
	seed[1].Content = "changed"

	msgs := h.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[1].Content)
}

func TestAddAppendsInOrder(t *testing.T) {
	h := New()
	before := h.Messages()

	require.NoError(t, h.Add(models.RoleUser, "Knock knock."))
	require.NoError(t, h.Add(models.RoleAssistant, "Who's there?"))
	require.NoError(t, h.Add(models.RoleUser, "Orange."))

	after := h.Messages()
	require.Len(t, after, len(before)+3)
	assert.Equal(t, before, after[:len(before)])
	assert.Equal(t, models.UserMessage("Knock knock."), after[1])
	assert.Equal(t, models.AssistantMessage("Who's there?"), after[2])
	assert.Equal(t, models.UserMessage("Orange."), after[3])
}

func TestAddRejectsUnknownRole(t *testing.T) {
	h := New()
	err := h.Add(models.Role("narrator"), "once upon a time")
	require.ErrorIs(t, err, ErrInvalidRole)
	assert.Equal(t, 1, h.Count())
}

func TestKnockKnockScenario(t *testing.T) {
	h := New()
	require.NoError(t, h.Add(models.RoleUser, "Knock knock."))
	require.NoError(t, h.Add(models.RoleAssistant, "Who's there?"))
	require.NoError(t, h.Add(models.RoleUser, "Orange."))

	assert.Equal(t, 4, h.Count())
	assert.Zero(t, h.Processed())
	assert.True(t, h.ShouldQuery())
}

func TestShouldQueryGate(t *testing.T) {
	cases := []struct {
		name      string
		extra     int
		processed bool
		want      bool
	}{
		{name: "seed only", want: false},
		{name: "single user message", extra: 1, want: true},
		{name: "all processed", extra: 2, processed: true, want: false},
		{name: "single processed message", extra: 1, processed: true, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New()
			for i := 0; i < tc.extra; i++ {
				require.NoError(t, h.Add(models.RoleUser, "hello"))
			}
			if tc.processed {
				h.MarkProcessed()
			}
			assert.Equal(t, tc.want, h.ShouldQuery())
		})
	}
}

func TestMarkProcessedOnlyIncreases(t *testing.T) {
	h := New()
	require.NoError(t, h.Add(models.RoleUser, "hello"))
	h.MarkProcessed()
	assert.Equal(t, 2, h.Processed())
	h.MarkProcessed()
	assert.Equal(t, 2, h.Processed())
	assert.LessOrEqual(t, h.Processed(), h.Count())
}

func TestErrorsAreAppendOnlyCopies(t *testing.T) {
	h := New()
	h.RecordError("first")
	h.RecordError("second")

	errs := h.Errors()
	errs[0] = "mutated"
	assert.Equal(t, []string{"first", "second"}, h.Errors())
}

func TestLastOnEmptyHistory(t *testing.T) {
	h := &History{}
	_, ok := h.Last()
	assert.False(t, ok)
}
