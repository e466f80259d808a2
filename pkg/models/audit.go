package models

import "time"

// AuditAction names a flow lifecycle transition written to the audit log.
type AuditAction string

const (
	AuditFlowOpened     AuditAction = "flow.opened"
	AuditFlowSubmitted  AuditAction = "flow.submitted"
	AuditFlowCompleted  AuditAction = "flow.completed"
	AuditFlowFailed     AuditAction = "flow.failed"
	AuditFlowClosed     AuditAction = "flow.closed"
	AuditFlowStepChange AuditAction = "flow.step_changed"
)

// AuditLog is one recorded flow lifecycle transition.
type AuditLog struct {
	ID        string         `json:"id"`
	FlowID    string         `json:"flow_id"`
	SessionID string         `json:"session_id,omitempty"`
	FlowKind  FlowKind       `json:"flow_kind"`
	Action    AuditAction    `json:"action"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
