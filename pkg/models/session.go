package models

import (
	"time"

	"github.com/dukex/lexflow/pkg/appstate"
)

// Session is one browser's application state.
type Session struct {
	ID        string         `json:"id"`
	State     appstate.State `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
