package models

import "time"

// CheckStatus is the domain-level result of a plate availability check. The
// terminal statuses mirror what the reporting callback delivers to users.
type CheckStatus string

const (
	CheckStatusPending     CheckStatus = "pending"
	CheckStatusRunning     CheckStatus = "running"
	CheckStatusAvailable   CheckStatus = "AVAILABLE"
	CheckStatusUnavailable CheckStatus = "NOT_AVAILABLE"
	CheckStatusError       CheckStatus = "ERROR_DURING_CHECK"
)

// Check is one plate reservation availability check against a city site,
// executed by running the workflow's compiled program in a browser session.
type Check struct {
	ID          string      `json:"id"`
	WorkflowID  string      `json:"workflow_id"  validate:"required"`
	CityID      string      `json:"city_id"      validate:"required"`
	PlateText   string      `json:"plate_text"   validate:"required,min=2"`
	Status      CheckStatus `json:"status"`
	LastError   string      `json:"last_error,omitempty"`
	CallbackURL string      `json:"callback_url,omitempty" validate:"omitempty,url"`
	LastRunAt   *time.Time  `json:"last_run_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// City holds the registered domains of a municipal site. Every execution for
// a check is restricted to the domains of its city.
type City struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"    validate:"required"`
	Domains []string `json:"domains" validate:"required,min=1,dive,hostname"`
}
