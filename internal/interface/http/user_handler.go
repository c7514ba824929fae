package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/rizkypriyo/go-accounts-api/internal/application"
	"github.com/rizkypriyo/go-accounts-api/internal/domain/entity"
	"github.com/rizkypriyo/go-accounts-api/internal/infrastructure/postgres"
	"github.com/rizkypriyo/go-accounts-api/pkg/response"
	"github.com/rizkypriyo/go-accounts-api/pkg/validation"
)

type UserHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
	Audit  *postgres.AuditRepository
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger, audit *postgres.AuditRepository) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, Audit: audit}
}

type registerRequest struct {
	Username   string `json:"username" binding:"required,username"`
	Email      string `json:"email" binding:"required,email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Password   string `json:"password" binding:"required,pwd"`
	RePassword string `json:"re_password" binding:"required,eqfield=Password"`
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type setPasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,pwd"`
	ReNewPassword   string `json:"re_new_password" binding:"required,eqfield=NewPassword"`
}

func profileJSON(u *entity.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	}
}

// Register POST /auth/users/
// New accounts start inactive; an activation email is queued.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}

	u, err := h.Svc.Register(c.Request.Context(), userapp.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		if errors.Is(err, userapp.ErrDuplicateUser) {
			resp := response.Error[any](c, http.StatusBadRequest, "registration failed",
				map[string]string{"username": "username or email already taken"})
			c.JSON(resp.Status, resp)
			return
		}
		resp := response.Error[any](c, http.StatusInternalServerError, "registration failed", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.audit(c, u.ID, u.Email, "register", nil)
	resp := response.Success(c, http.StatusCreated, profileJSON(u), "user created", nil)
	c.JSON(resp.Status, resp)
}

// Me GET /auth/users/me/
func (h *UserHandler) Me(c *gin.Context) {
	uid := c.GetString("userID")
	u, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		resp := response.Error[any](c, http.StatusNotFound, "user not found", nil)
		c.JSON(resp.Status, resp)
		return
	}
	resp := response.Success(c, http.StatusOK, profileJSON(u), "profile", nil)
	c.JSON(resp.Status, resp)
}

// UpdateMe PUT /auth/users/me/
func (h *UserHandler) UpdateMe(c *gin.Context) {
	uid := c.GetString("userID")
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), uid, userapp.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "failed to update profile", nil)
		c.JSON(resp.Status, resp)
		return
	}
	resp := response.Success(c, http.StatusOK, profileJSON(u), "profile updated", nil)
	c.JSON(resp.Status, resp)
}

// SetPassword POST /auth/users/set_password/
func (h *UserHandler) SetPassword(c *gin.Context) {
	uid := c.GetString("userID")
	var req setPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	if err := h.Svc.SetPassword(c.Request.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, userapp.ErrInvalidCredentials) {
			resp := response.Error[any](c, http.StatusBadRequest, "invalid payload",
				map[string]string{"current_password": "wrong password"})
			c.JSON(resp.Status, resp)
			return
		}
		resp := response.Error[any](c, http.StatusInternalServerError, "failed to set password", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.audit(c, uid, "", "set_password", nil)
	c.Status(http.StatusNoContent)
}

// List GET /auth/users/
// With ?search= the listing is served from the Elasticsearch index.
func (h *UserHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	if q := c.Query("search"); q != "" {
		size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		hits, err := h.Svc.SearchUsers(ctx, q, size)
		if err != nil {
			resp := response.Error[any](c, http.StatusInternalServerError, "search failed", nil)
			c.JSON(resp.Status, resp)
			return
		}
		resp := response.Success(c, http.StatusOK, hits, "users", map[string]any{"query": q})
		c.JSON(resp.Status, resp)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	users, err := h.Svc.ListUsers(ctx, limit, offset)
	if err != nil {
		resp := response.Error[any](c, http.StatusInternalServerError, "failed to list users", nil)
		c.JSON(resp.Status, resp)
		return
	}
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, profileJSON(u))
	}
	resp := response.Success(c, http.StatusOK, out, "users", map[string]any{"limit": limit, "offset": offset})
	c.JSON(resp.Status, resp)
}

// Detail GET /auth/users/:id/
func (h *UserHandler) Detail(c *gin.Context) {
	u, err := h.Svc.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		resp := response.Error[any](c, http.StatusNotFound, "user not found", nil)
		c.JSON(resp.Status, resp)
		return
	}
	resp := response.Success(c, http.StatusOK, profileJSON(u), "user", nil)
	c.JSON(resp.Status, resp)
}

// Delete DELETE /auth/users/:id/
func (h *UserHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.Svc.DeleteUser(c.Request.Context(), id); err != nil {
		if errors.Is(err, userapp.ErrUserNotFound) {
			resp := response.Error[any](c, http.StatusNotFound, "user not found", nil)
			c.JSON(resp.Status, resp)
			return
		}
		resp := response.Error[any](c, http.StatusInternalServerError, "failed to delete user", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.audit(c, id, "", "delete_user", nil)
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) audit(c *gin.Context, userID, email, action string, metadata map[string]any) {
	if h.Audit == nil {
		return
	}
	_ = h.Audit.Insert(c.Request.Context(), postgres.AuditEntry{
		UserID:    userID,
		Email:     email,
		Action:    action,
		IP:        clientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
		Metadata:  metadata,
	})
}
