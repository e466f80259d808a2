// Package web provides HTTP request and response types for the lexflow API.
package web

// CreateFlowRequest represents the request body for opening a flow outside a session modal.
type CreateFlowRequest struct {
	Kind      string `json:"kind"                 validate:"required,oneof=signup contact onboarding document"`
	SessionID string `json:"session_id,omitempty"`
}

// UpdateFieldRequest carries the new raw value of one field.
type UpdateFieldRequest struct {
	Value string `json:"value"`
}

// JumpRequest selects a step by index.
type JumpRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

type SelectPeriodRequest struct {
	Period string `json:"period" validate:"required,oneof=monthly annual"`
}

type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required"`
}

// CheckoutResponse holds the hosted checkout page the browser is redirected to.
type CheckoutResponse struct {
	URL string `json:"url"`
}

type CreateWalkthroughRequest struct {
	Kind      string `json:"kind"                 validate:"required,oneof=demo guide"`
	SessionID string `json:"session_id,omitempty"`
}
