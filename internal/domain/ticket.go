package domain

import "time"

// TicketCategory enumerates the closed set of intake categories.
type TicketCategory string

const (
	CategoryIncident       TicketCategory = "Incident"
	CategoryServiceRequest TicketCategory = "Service Request"
	CategoryInquiry        TicketCategory = "Inquiry"
)

// RequiresApproval reports whether tickets of this category run the
// sequential approval workflow.
func (c TicketCategory) RequiresApproval() bool {
	return c == CategoryServiceRequest
}

// TicketStatus enumerates operational lifecycle states handled by IT.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusOnHold     TicketStatus = "On Hold"
	TicketStatusCompleted  TicketStatus = "Completed"
	TicketStatusReopened   TicketStatus = "Reopened"
	TicketStatusCanceled   TicketStatus = "Canceled"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "Low"
	TicketPriorityMedium   TicketPriority = "Medium"
	TicketPriorityHigh     TicketPriority = "High"
	TicketPriorityCritical TicketPriority = "Critical"
)

// Ticket is the aggregate for intake requests. ApprovalStatus is a cached
// projection of the approval ledger; the ledger stays the source of truth.
// ApproverSnapshot is frozen at creation time and never rewritten, so later
// directory edits cannot change an in-flight ticket's approval order.
type Ticket struct {
	Number            string
	EmployeeID        string
	EmployeeName      string
	LineOfBusiness    string
	OfficeSite        string
	Email             string
	Category          TicketCategory
	Priority          TicketPriority
	RequestType       string
	Description       string
	AdditionalDetails string
	Status            TicketStatus
	ITInCharge        string
	Resolution        string
	ApprovalStatus    ApprovalStatus
	ApprovalUpdatedAt *time.Time
	ApproverSnapshot  []string
	Remarks           string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
