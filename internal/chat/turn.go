package chat

import (
	"context"
	"strings"

	"vetter/internal/history"
	"vetter/internal/models"
)

// MaxInputChars caps the length of one user message.
const MaxInputChars = 4000

// Querier answers the unprocessed part of a History.
type Querier interface {
	Query(ctx context.Context, h *history.History) Result
}

// Turn runs one UI event: the opening reply to the seed when nothing has been
// answered yet, then the user's text if any. Blank text is skipped; other
// text is stored as typed. It returns the notice to show.
// Callers hold the session lock for the whole turn.
func Turn(ctx context.Context, q Querier, h *history.History, text string) string {
	var notice string

	opening := Result{Status: StatusSkipped}
	if h.Processed() == 0 {
		opening = q.Query(ctx, h)
		notice = opening.Notice()
	}
	if strings.TrimSpace(text) == "" {
		return notice
	}
	if err := h.Add(models.RoleUser, text); err != nil {
		h.RecordError(err.Error())
		return notice
	}
	if opening.Status == StatusFailed {
		// the service is already failing; the text waits for the next event
		return notice
	}
	if n := q.Query(ctx, h).Notice(); n != "" {
		notice = n
	}
	return notice
}
