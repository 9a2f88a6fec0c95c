package session

import (
	"fmt"

	"vetter/internal/models"
)

// Transcript renders the snapshot for display. System messages are hidden.
func (s Snapshot) Transcript(title, notice string) models.Transcript {
	bubbles := make([]models.Bubble, 0, len(s.Messages))
	for i, msg := range s.Messages {
		if msg.Role == models.RoleSystem {
			continue
		}
		bubbles = append(bubbles, models.Bubble{
			Key:     fmt.Sprintf("%s_%d", msg.Role, i),
			Role:    msg.Role,
			Content: msg.Content,
			IsUser:  msg.Role == models.RoleUser,
		})
	}
	errs := s.Errors
	if errs == nil {
		errs = []string{}
	}
	return models.Transcript{
		SessionID: s.ID,
		Title:     title,
		Bubbles:   bubbles,
		Errors:    errs,
		Notice:    notice,
		Processed: s.Processed,
		Count:     s.Count,
		Pending:   s.Pending,
		UpdatedAt: s.UpdatedAt,
	}
}
