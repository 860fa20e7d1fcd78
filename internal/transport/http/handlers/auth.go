package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/marketgrid/credential-service/internal/usecase"
)

// AuthHandler exposes the credential verification endpoint.
type AuthHandler struct {
	login *usecase.LoginService
}

func NewAuthHandler(login *usecase.LoginService) *AuthHandler {
	return &AuthHandler{login: login}
}

// RegisterRoutes wires auth endpoints onto the provided router group.
func (h *AuthHandler) RegisterRoutes(group *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	handlers := append([]gin.HandlerFunc{}, loginMiddlewares...)
	handlers = append(handlers, h.Login)
	group.POST("/login", handlers...)
}

// Login godoc
// @Summary Verify credentials for an account
// @Description Checks the supplied password against the stored credential and returns the account on success. Session issuance is the caller's responsibility.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	if h.login == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "login handler not configured"))
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	user, err := h.login.Authenticate(c.Request.Context(), strings.TrimSpace(req.Identifier), req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account is not active"},
		}, http.StatusInternalServerError, "failed to verify credentials")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Message: "Credentials verified",
		User:    newUserSummary(*user),
	})
}
