package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/marketgrid/credential-service/internal/core/domain"
	"github.com/marketgrid/credential-service/internal/core/port"
	"github.com/marketgrid/credential-service/internal/usecase"
)

// CredentialHandler exposes enrollment and password change endpoints.
type CredentialHandler struct {
	credentials *usecase.CredentialService
	policy      port.PasswordPolicy
}

func NewCredentialHandler(credentials *usecase.CredentialService, policy port.PasswordPolicy) *CredentialHandler {
	return &CredentialHandler{
		credentials: credentials,
		policy:      policy,
	}
}

// Enroll godoc
// @Summary Enroll a new account credential
// @Description Validates the password against policy, hashes it, and stores the new account.
// @Tags Credentials
// @Accept json
// @Produce json
// @Param request body EnrollRequest true "Enrollment request"
// @Success 201 {object} EnrollResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/users [post]
func (h *CredentialHandler) Enroll(c *gin.Context) {
	if h.credentials == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "credential handler not configured"))
		return
	}

	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid enrollment payload"))
		return
	}

	user, err := h.credentials.Enroll(c.Request.Context(), usecase.EnrollInput{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Password: req.Password,
	})
	if err != nil {
		if respondPolicyViolation(c, err) {
			return
		}
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "failed to enroll account"))
		return
	}

	c.JSON(http.StatusCreated, EnrollResponse{
		Message: "Account enrolled",
		User:    newUserSummary(*user),
	})
}

// ChangePassword godoc
// @Summary Change the password for an account
// @Description Re-verifies the current password and replaces the stored credential.
// @Tags Credentials
// @Accept json
// @Produce json
// @Param request body PasswordChangeRequest true "Password change request"
// @Success 200 {object} PasswordChangeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/password/change [post]
func (h *CredentialHandler) ChangePassword(c *gin.Context) {
	if h.credentials == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "credential handler not configured"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid change password payload"))
		return
	}

	result, err := h.credentials.Change(c.Request.Context(), usecase.ChangeInput{
		UserID:          strings.TrimSpace(req.UserID),
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		IP:              c.ClientIP(),
		UserAgent:       c.GetHeader("User-Agent"),
	})
	if err != nil {
		if respondPolicyViolation(c, err) {
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrCurrentPasswordRequired, Status: http.StatusBadRequest, Message: "current password is required"},
			{Err: usecase.ErrCurrentPasswordInvalid, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, PasswordChangeResponse{
		Message:   "Password changed successfully",
		ChangedAt: result.ChangedAt,
	})
}

// CheckPolicy godoc
// @Summary Evaluate a candidate password against policy
// @Description Returns the policy verdict and advisory reasons without storing anything.
// @Tags Credentials
// @Accept json
// @Produce json
// @Param request body PolicyCheckRequest true "Policy check request"
// @Success 200 {object} PolicyCheckResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/password/check [post]
func (h *CredentialHandler) CheckPolicy(c *gin.Context) {
	if h.policy == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "password policy not configured"))
		return
	}

	var req PolicyCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid policy check payload"))
		return
	}

	ctx := domain.PasswordContext{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		ctx.Phone = &phone
	}

	result := h.policy.Evaluate(req.Password, ctx)

	c.JSON(http.StatusOK, PolicyCheckResponse{
		Valid:   result.Valid,
		Reasons: result.Reasons,
	})
}

// respondPolicyViolation emits a 422 with the policy reasons when the error is
// a policy rejection; it reports whether it handled the error.
func respondPolicyViolation(c *gin.Context, err error) bool {
	var policyErr *usecase.PolicyViolationError
	if !errors.As(err, &policyErr) {
		return false
	}

	resp := NewErrorResponse(c, "password rejected by policy")
	resp.Reasons = policyErr.Reasons
	c.JSON(http.StatusUnprocessableEntity, resp)
	return true
}
