package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin       = "LOGIN"
	AuditActionSwapSubmit  = "SWAP_SUBMIT"
	AuditActionSwapCancel  = "SWAP_CANCEL"
	AuditActionSwapApprove = "SWAP_APPROVE"
	AuditActionSwapReject  = "SWAP_REJECT"
	AuditActionSwapExport  = "SWAP_EXPORT"
)

// AuditResourceSwapRequest names swap requests in the audit trail.
const AuditResourceSwapRequest = "swap_request"

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  []byte    `db:"old_values" json:"oldValues,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
