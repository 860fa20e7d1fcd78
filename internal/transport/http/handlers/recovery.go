package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marketgrid/credential-service/internal/usecase"
)

// RecoveryHandler exposes the password recovery lifecycle endpoints.
type RecoveryHandler struct {
	recovery *usecase.RecoveryService
}

func NewRecoveryHandler(recovery *usecase.RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{recovery: recovery}
}

// Request godoc
// @Summary Initiate a password recovery
// @Description Starts the recovery flow and always returns an accepted response to avoid account enumeration.
// @Tags Recovery
// @Accept json
// @Produce json
// @Param request body RecoveryRequestBody true "Recovery request"
// @Success 202 {object} RecoveryRequestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/password/recovery/request [post]
func (h *RecoveryHandler) Request(c *gin.Context) {
	if h.recovery == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "recovery handler not configured"))
		return
	}

	var req RecoveryRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid recovery request"))
		return
	}

	result, err := h.recovery.RequestRecovery(c.Request.Context(), usecase.RecoveryRequestInput{
		Identifier: strings.TrimSpace(req.Identifier),
		Channel:    strings.ToLower(strings.TrimSpace(req.Channel)),
		IP:         c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
	})
	if err != nil {
		var rateErr *usecase.RateLimitExceededError
		if errors.As(err, &rateErr) {
			retryAfter := int(rateErr.RetryAfter.Round(time.Second) / time.Second)
			if retryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(retryAfter))
			}
			c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many recovery requests"))
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRecoveryUnavailable, Status: http.StatusServiceUnavailable, Message: "recovery unavailable"},
		}, http.StatusInternalServerError, "failed to initiate recovery")
		return
	}

	c.JSON(http.StatusAccepted, RecoveryRequestResponse{
		Message:     "If the account exists, instructions have been sent",
		RequestID:   result.RequestID,
		RequestedAt: result.RequestedAt,
	})
}

// Confirm godoc
// @Summary Complete a password recovery
// @Description Finalizes the recovery using an email token or an SMS verification code and replaces the stored credential.
// @Tags Recovery
// @Accept json
// @Produce json
// @Param request body RecoveryConfirmRequest true "Recovery confirm request"
// @Success 200 {object} RecoveryConfirmResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/password/recovery/confirm [post]
func (h *RecoveryHandler) Confirm(c *gin.Context) {
	if h.recovery == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "recovery handler not configured"))
		return
	}

	var req RecoveryConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid recovery confirmation"))
		return
	}

	token := strings.TrimSpace(req.Token)
	identifier := strings.TrimSpace(req.Identifier)
	code := strings.TrimSpace(req.Code)

	var (
		result *usecase.ResetResult
		err    error
	)

	switch {
	case token != "":
		result, err = h.recovery.ResetWithToken(c.Request.Context(), token, req.NewPassword)
	case identifier != "" && code != "":
		result, err = h.recovery.ResetWithSMS(c.Request.Context(), identifier, code, req.NewPassword)
	default:
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token or identifier with code is required"))
		return
	}

	if err != nil {
		if respondPolicyViolation(c, err) {
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidOrExpiredToken, Status: http.StatusBadRequest, Message: "recovery token invalid or expired"},
			{Err: usecase.ErrInvalidOrExpiredCode, Status: http.StatusBadRequest, Message: "recovery code invalid or expired"},
			{Err: usecase.ErrAttemptsExhausted, Status: http.StatusTooManyRequests, Message: "too many failed attempts, request a new code"},
		}, http.StatusInternalServerError, "failed to complete recovery")
		return
	}

	c.JSON(http.StatusOK, RecoveryConfirmResponse{
		Message:   "Password reset successful",
		UserID:    result.UserID,
		ChangedAt: result.ChangedAt,
	})
}
