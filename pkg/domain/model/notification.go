package model

// Notification is a completion message for a finished run. Text follows
// the fixed one-line format produced by Run.Summary; Status lets
// channel-specific notifiers pick colors or markers.
type Notification struct {
	Text       string
	Status     RunStatus
	Workflow   string
	Repository string
}

// NewNotification renders the notification for a finished run.
func NewNotification(r *Run) *Notification {
	return &Notification{
		Text:       r.Summary(),
		Status:     r.Status,
		Workflow:   r.Workflow,
		Repository: r.Repository,
	}
}
