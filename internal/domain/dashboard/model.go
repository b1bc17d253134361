package dashboard

import "github.com/google/uuid"

// Action types.
const (
	TypeEnrollment = "ENROLLMENT"
	TypeBenefits   = "BENEFITS"
	TypeService    = "SERVICE"
	TypeMessage    = "MESSAGE"
)

// Action priorities, ordered most urgent first.
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// Action is a suggested next step surfaced on the dashboard. Actions
// are computed on demand and never persisted.
type Action struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ActionType   string     `json:"action_type"`
	Priority     string     `json:"priority"`
	ResourceID   *uuid.UUID `json:"resource_id,omitempty"`
	ResourceName *string    `json:"resource_name,omitempty"`
	ActionURL    string     `json:"action_url"`
	Icon         string     `json:"icon"`
	DaysOverdue  *int       `json:"days_overdue,omitempty"`
}

func priorityRank(p string) int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}
