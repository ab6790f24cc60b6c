package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ svc AuthService }

func RegisterRoutes(r gin.IRoutes, svc AuthService) {
	h := &AuthHandler{svc: svc}
	r.POST("/auth/login", h.Login)
}

type LoginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Login godoc
// @Summary  ログイン（JWT 発行）
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body LoginRequest true "credentials"
// @Success  200 {object} LoginResponse
// @Router   /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request")
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.ID, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, LoginResponse{Token: token, Message: "Login successful"})
	case errors.Is(err, ErrAuthenticationFailed), errors.Is(err, ErrAccountDisabled):
		abort(c, http.StatusUnauthorized, "IDまたはパスワードが間違っています")
	default:
		abort(c, http.StatusServiceUnavailable, "login temporarily unavailable")
	}
}
