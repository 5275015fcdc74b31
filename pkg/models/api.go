// pkg/models/api.go
package models

// ValidationErrorResponse is the Laravel-style validation error body.
type ValidationErrorResponse struct {
	Message string              `json:"message" example:"Validation failed"`
	Step    string              `json:"step,omitempty" example:"claim_details"`
	Errors  map[string][]string `json:"errors"`
}

// ErrorResponse is the generic error body (403/404/409/500).
type ErrorResponse struct {
	Error   bool   `json:"error" example:"true"`
	Message string `json:"message" example:"Forbidden"`
	Code    string `json:"code,omitempty" example:"FORBIDDEN"`
}

// TransitionErrorResponse is returned when a requested status change is not allowed.
type TransitionErrorResponse struct {
	ErrorResponse
	CurrentStatus   ClaimStatus `json:"current_status"`
	RequestedStatus ClaimStatus `json:"requested_status"`
}
