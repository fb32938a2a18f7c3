package dto

import (
	"time"

	"github.com/helpdesk-ops/approval-service/internal/domain"
)

// LoginRequest credentials payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and its identity.
type LoginResponse struct {
	Token    string          `json:"token"`
	Identity domain.Identity `json:"identity"`
}

// ChangePasswordRequest rotates the caller's own credential.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ResetPasswordRequest starts the temp-password flow.
type ResetPasswordRequest struct {
	Email string `json:"email"`
}

// CreateAdminRequest provisions an operations credential.
type CreateAdminRequest struct {
	FullName   string `json:"full_name"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Email      string `json:"email"`
	Department string `json:"department"`
	EmployeeID string `json:"employee_id"`
}

// AdminResponse is a credential record without its digest.
type AdminResponse struct {
	FullName   string    `json:"full_name"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Department string    `json:"department,omitempty"`
	EmployeeID string    `json:"employee_id,omitempty"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// VerifyEmployeeRequest carries the private employee code.
type VerifyEmployeeRequest struct {
	Code string `json:"code"`
}

// EmployeeResponse is the verified directory entry; the code digest is
// never echoed.
type EmployeeResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	LineOfBusiness string `json:"line_of_business"`
	Email          string `json:"email"`
}

// CreateTicketRequest is the intake payload.
type CreateTicketRequest struct {
	EmployeeID        string `json:"employee_id"`
	EmployeeName      string `json:"employee_name"`
	LineOfBusiness    string `json:"line_of_business"`
	OfficeSite        string `json:"office_site"`
	Email             string `json:"email"`
	Category          string `json:"category"`
	Priority          string `json:"priority"`
	RequestType       string `json:"request_type"`
	Description       string `json:"description"`
	AdditionalDetails string `json:"additional_details"`
}

// TicketResponse is the external ticket shape.
type TicketResponse struct {
	Number            string     `json:"number"`
	EmployeeID        string     `json:"employee_id"`
	EmployeeName      string     `json:"employee_name"`
	LineOfBusiness    string     `json:"line_of_business,omitempty"`
	OfficeSite        string     `json:"office_site,omitempty"`
	Email             string     `json:"email"`
	Category          string     `json:"category"`
	Priority          string     `json:"priority"`
	RequestType       string     `json:"request_type,omitempty"`
	Description       string     `json:"description"`
	AdditionalDetails string     `json:"additional_details,omitempty"`
	Status            string     `json:"status"`
	ITInCharge        string     `json:"it_in_charge,omitempty"`
	Resolution        string     `json:"resolution,omitempty"`
	ApprovalStatus    string     `json:"approval_status"`
	ApprovalUpdatedAt *time.Time `json:"approval_updated_at,omitempty"`
	ApproverSnapshot  []string   `json:"approver_snapshot,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DecisionRequest is one approver's response. Action may be omitted when a
// signed link already encodes it.
type DecisionRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

// DecisionResponse reports the workflow position after the decision.
type DecisionResponse struct {
	TicketNumber   string `json:"ticket_number"`
	Phase          string `json:"phase"`
	Approvals      int    `json:"approvals"`
	ApprovalStatus string `json:"approval_status"`
}

// UpdateStatusRequest is the admin lifecycle update payload.
type UpdateStatusRequest struct {
	Status     string `json:"status"`
	ITInCharge string `json:"it_in_charge"`
	Resolution string `json:"resolution"`
	Comment    string `json:"comment"`
}

// ApproverEntry is one line-of-business chain in the directory.
type ApproverEntry struct {
	LineOfBusiness string   `json:"line_of_business"`
	Approvers      []string `json:"approvers"`
}

// ReplaceApproversRequest swaps the whole directory.
type ReplaceApproversRequest struct {
	Entries []ApproverEntry `json:"entries"`
}

// FromTicket maps the aggregate to its external shape.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		Number:            t.Number,
		EmployeeID:        t.EmployeeID,
		EmployeeName:      t.EmployeeName,
		LineOfBusiness:    t.LineOfBusiness,
		OfficeSite:        t.OfficeSite,
		Email:             t.Email,
		Category:          string(t.Category),
		Priority:          string(t.Priority),
		RequestType:       t.RequestType,
		Description:       t.Description,
		AdditionalDetails: t.AdditionalDetails,
		Status:            string(t.Status),
		ITInCharge:        t.ITInCharge,
		Resolution:        t.Resolution,
		ApprovalStatus:    string(t.ApprovalStatus),
		ApprovalUpdatedAt: t.ApprovalUpdatedAt,
		ApproverSnapshot:  t.ApproverSnapshot,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// FromTickets maps a slice.
func FromTickets(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, FromTicket(&tickets[i]))
	}
	return out
}

// FromAdmin maps a credential record.
func FromAdmin(a *domain.AdminAccount) AdminResponse {
	return AdminResponse{
		FullName:   a.FullName,
		Username:   a.Username,
		Email:      a.Email,
		Department: a.Department,
		EmployeeID: a.EmployeeID,
		Role:       a.Role,
		CreatedAt:  a.CreatedAt,
	}
}

// FromEmployee maps a directory entry.
func FromEmployee(e *domain.Employee) EmployeeResponse {
	return EmployeeResponse{
		ID:             e.ID,
		Name:           e.Name,
		LineOfBusiness: e.LineOfBusiness,
		Email:          e.Email,
	}
}
