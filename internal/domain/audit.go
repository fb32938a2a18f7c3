package domain

import "time"

// AuditEntry is one row of the append-only action log.
type AuditEntry struct {
	ID           int64     `json:"id"`
	TicketNumber string    `json:"ticket_number,omitempty"`
	Action       string    `json:"action"`
	PerformedBy  string    `json:"performed_by"`
	Details      string    `json:"details,omitempty"`
	Remarks      string    `json:"remarks,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
