package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rizkypriyo/go-accounts-api/pkg/response"
)

// Routes GET /auth/routes/
// Static directory of the auth endpoints, for discoverability.
func Routes(c *gin.Context) {
	routes := gin.H{
		"Auth Endpoints": gin.H{
			"User Registration":      "/api/v1/auth/users/",
			"User Login (JWT)":       "/api/v1/auth/jwt/create/",
			"User Logout (JWT)":      "/api/v1/auth/token/blacklist/",
			"Token Refresh":          "/api/v1/auth/jwt/refresh/",
			"User Activation":        "/api/v1/auth/users/activation/",
			"Resend Activation":      "/api/v1/auth/users/resend_activation/",
			"Password Reset":         "/api/v1/auth/users/reset_password/",
			"Password Reset Confirm": "/api/v1/auth/users/reset_password_confirm/",
			"Set New Password":       "/api/v1/auth/users/set_password/",
			"User Profile":           "/api/v1/auth/users/me/",
			"User List":              "/api/v1/auth/users/",
			"User Detail":            "/api/v1/auth/users/{id}/",
			"Delete User":            "/api/v1/auth/users/{id}/",
		},
	}
	resp := response.Success(c, http.StatusOK, routes, "available routes", nil)
	c.JSON(resp.Status, resp)
}
