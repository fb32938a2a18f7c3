package domain

import "time"

// Identity is the record bound to a session token.
type Identity struct {
	FullName   string `json:"full_name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	EmployeeID string `json:"employee_id"`
	Role       string `json:"role"`
}

// RoleAdmin is the default role granted to operations/IT accounts.
const RoleAdmin = "Admin"

// AdminAccount is a stored operations credential. PasswordDigest is the
// salted one-way digest of the plaintext, never the plaintext itself.
type AdminAccount struct {
	FullName       string
	Username       string
	PasswordDigest string
	Email          string
	Department     string
	EmployeeID     string
	Role           string
	CreatedAt      time.Time
}

// Identity projects the credential into the record sessions carry.
func (a *AdminAccount) Identity() Identity {
	role := a.Role
	if role == "" {
		role = RoleAdmin
	}
	return Identity{
		FullName:   a.FullName,
		Username:   a.Username,
		Email:      a.Email,
		EmployeeID: a.EmployeeID,
		Role:       role,
	}
}

// Employee is a directory entry used to verify requesters. CodeHash is the
// SHA-256 hex digest of the employee's unique code.
type Employee struct {
	ID             string
	Name           string
	LineOfBusiness string
	Email          string
	CodeHash       string
}
