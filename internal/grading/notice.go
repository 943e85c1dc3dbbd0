package grading

import "time"

// NoticeDuration is how long a success notice stays visible
const NoticeDuration = 3000 * time.Millisecond

// Notice is a transient message shown after a successful submission
type Notice struct {
	Message   string
	ExpiresAt time.Time
}

// NewNotice creates a notice that auto-dismisses NoticeDuration after now
func NewNotice(message string, now time.Time) Notice {
	return Notice{Message: message, ExpiresAt: now.Add(NoticeDuration)}
}

// Active reports whether the notice should still be displayed at now
func (n Notice) Active(now time.Time) bool {
	return n.Message != "" && now.Before(n.ExpiresAt)
}

// Remaining returns how long the notice stays visible after now
func (n Notice) Remaining(now time.Time) time.Duration {
	if !n.Active(now) {
		return 0
	}
	return n.ExpiresAt.Sub(now)
}
