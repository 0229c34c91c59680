package tui

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/waabox/zohoauth/internal/auth"
)

const maxVisibleAttempts = 5

// AttemptListModel is an immutable model for the recent poll attempts panel.
type AttemptListModel struct {
	attempts []auth.PollAttempt
	issuedAt time.Time
}

// NewAttemptListModel creates an attempt list. issuedAt is the device code
// issue time; rows show the offset of each attempt from it.
func NewAttemptListModel(issuedAt time.Time) AttemptListModel {
	return AttemptListModel{issuedAt: issuedAt}
}

// Add returns a new model with a appended, keeping only the most recent rows.
func (m AttemptListModel) Add(a auth.PollAttempt) AttemptListModel {
	attempts := append(append([]auth.PollAttempt(nil), m.attempts...), a)
	if len(attempts) > maxVisibleAttempts {
		attempts = attempts[len(attempts)-maxVisibleAttempts:]
	}
	m.attempts = attempts
	return m
}

// Attempts returns the visible attempts, oldest first.
func (m AttemptListModel) Attempts() []auth.PollAttempt {
	return m.attempts
}

// View renders one line per attempt.
func (m AttemptListModel) View() string {
	if len(m.attempts) == 0 {
		return "  No attempts yet.\n"
	}
	var sb strings.Builder
	for _, a := range m.attempts {
		offset := "--"
		if !m.issuedAt.IsZero() && !a.At.IsZero() {
			offset = fmt.Sprintf("+%ds", int(a.At.Sub(m.issuedAt).Seconds()))
		}
		sb.WriteString(fmt.Sprintf("  %s #%-3d %-7s %s\n", statusIcon(a), a.N, offset, statusText(a)))
	}
	return sb.String()
}

func statusIcon(a auth.PollAttempt) string {
	switch {
	case a.Pending:
		return "…"
	case a.StatusCode == http.StatusOK:
		return "✓"
	default:
		return "✗"
	}
}

func statusText(a auth.PollAttempt) string {
	if a.Pending {
		return "pending"
	}
	return fmt.Sprintf("HTTP %d", a.StatusCode)
}
