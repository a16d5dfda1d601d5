// Package web provides the HTTP handlers and request types of the REST API.
package web

import "github.com/platewatch/platewatch/pkg/models"

// CreateWorkflowRequest is the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string        `json:"name"        validate:"required,min=3"`
	Description string        `json:"description"`
	Graph       *models.Graph `json:"graph"`
	Owner       string        `json:"owner"`
}

// UpdateWorkflowRequest is the request body for updating a draft workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string       `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string       `json:"description,omitempty"`
	Graph       *models.Graph `json:"graph,omitempty"`
}

// CreateCheckRequest is the request body for requesting a plate check.
type CreateCheckRequest struct {
	WorkflowID  string `json:"workflow_id"  validate:"required"`
	CityID      string `json:"city_id"      validate:"required"`
	PlateText   string `json:"plate_text"   validate:"required,min=2"`
	CallbackURL string `json:"callback_url" validate:"omitempty,url"`
}

// CreateCityRequest is the request body for registering a city site.
type CreateCityRequest struct {
	ID      string   `json:"id"      validate:"required"`
	Name    string   `json:"name"    validate:"required"`
	Domains []string `json:"domains" validate:"required,min=1,dive,hostname"`
}
