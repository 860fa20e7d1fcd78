package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marketgrid/credential-service/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Reasons []string `json:"reasons,omitempty"`
	TraceID string   `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes a minimal view of a user returned by the API.
type UserSummary struct {
	ID           string            `json:"id"`
	Username     string            `json:"username"`
	Status       domain.UserStatus `json:"status"`
	Email        *string           `json:"email,omitempty"`
	Phone        *string           `json:"phone,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}

// EnrollRequest defines the account enrollment payload.
type EnrollRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone" binding:"omitempty"`
	Password string `json:"password" binding:"required"`
}

// EnrollResponse contains enrollment results.
type EnrollResponse struct {
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}

// PasswordChangeRequest captures a password change request body.
type PasswordChangeRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// PasswordChangeResponse conveys the result of a password change.
type PasswordChangeResponse struct {
	Message   string    `json:"message"`
	ChangedAt time.Time `json:"changed_at"`
}

// RecoveryRequestBody represents a password recovery initiation payload.
type RecoveryRequestBody struct {
	Identifier string `json:"identifier" binding:"required"`
	Channel    string `json:"channel"`
}

// RecoveryRequestResponse acknowledges a recovery request. The shape is the
// same whether or not the identifier matched an account.
type RecoveryRequestResponse struct {
	Message     string    `json:"message"`
	RequestID   string    `json:"request_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// RecoveryConfirmRequest captures a password recovery confirmation payload.
// Token-based confirmations carry a token; SMS confirmations carry the
// identifier plus the delivered code.
type RecoveryConfirmRequest struct {
	Token       string `json:"token"`
	Identifier  string `json:"identifier"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password" binding:"required"`
}

// RecoveryConfirmResponse indicates that a password recovery completed successfully.
type RecoveryConfirmResponse struct {
	Message   string    `json:"message"`
	UserID    string    `json:"user_id"`
	ChangedAt time.Time `json:"changed_at"`
}

// PolicyCheckRequest asks for a password to be evaluated against policy.
type PolicyCheckRequest struct {
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// PolicyCheckResponse reports the policy verdict without creating anything.
type PolicyCheckResponse struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons,omitempty"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newUserSummary converts a domain user to a summary suitable for API responses.
func newUserSummary(user domain.User) UserSummary {
	summary := UserSummary{
		ID:           user.ID,
		Username:     user.Username,
		Status:       user.Status,
		RegisteredAt: user.RegisteredAt,
	}

	if email := strings.TrimSpace(user.Email); email != "" {
		summary.Email = &email
	}

	if user.Phone != nil {
		phone := strings.TrimSpace(*user.Phone)
		if phone != "" {
			summary.Phone = &phone
		}
	}

	return summary
}
