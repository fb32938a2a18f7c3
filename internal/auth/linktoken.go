package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/helpdesk-ops/approval-service/internal/domain"
)

// LinkTokenManager signs the tokens embedded in emailed approve/decline
// links. A link token proves the holder was the addressed approver for one
// specific ticket; it grants nothing beyond submitting that approver's own
// decision.
type LinkTokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewLinkTokenManager builds a new manager.
func NewLinkTokenManager(secret string, ttl time.Duration) *LinkTokenManager {
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &LinkTokenManager{secret: []byte(secret), ttl: ttl}
}

// LinkClaims describes the approval-link payload.
type LinkClaims struct {
	TicketNumber  string                `json:"ticket"`
	ApproverEmail string                `json:"approver"`
	Action        domain.DecisionAction `json:"action"`
	jwt.RegisteredClaims
}

// Generate builds and signs a link token for one approver and ticket.
func (m *LinkTokenManager) Generate(ticketNumber, approverEmail string, action domain.DecisionAction) (string, error) {
	now := time.Now()
	claims := &LinkClaims{
		TicketNumber:  ticketNumber,
		ApproverEmail: strings.ToLower(strings.TrimSpace(approverEmail)),
		Action:        action,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ticketNumber,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse validates and returns claims.
func (m *LinkTokenManager) Parse(tokenStr string) (*LinkClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &LinkClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*LinkClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid link token claims")
	}
	return claims, nil
}
