package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/service"
)

// UserHandler administers accounts. Routes are reviewer-only.
type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type CreateUserRequest struct {
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=8"`
	Name     string      `json:"name" binding:"required"`
	Role     domain.Role `json:"role" binding:"omitempty,oneof=user admin"`
}

type UpdateRoleRequest struct {
	Role domain.Role `json:"role" binding:"required,oneof=user admin"`
}

type DeleteUserResponse struct {
	Success bool                      `json:"success"`
	Reports []*service.DeletionReport `json:"reports"`
}

// List godoc
// @Summary List users (reviewer)
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Success 200 {array} UserResponse
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = MapUserToResponse(&users[i])
	}
	c.JSON(http.StatusOK, resp)
}

// Create godoc
// @Summary Create a user (reviewer)
// @Tags Users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param user body CreateUserRequest true "Account details"
// @Success 201 {object} UserResponse
// @Failure 409 {object} ErrorResponse "Email already registered"
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.users.Create(c.Request.Context(), callerFromContext(c), service.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapUserToResponse(user))
}

// UpdateRole godoc
// @Summary Change a user's role (reviewer)
// @Description Outstanding tokens of the user are revoked.
// @Tags Users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param body body UpdateRoleRequest true "New role"
// @Success 200 {object} UserResponse
// @Router /users/{id} [patch]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.users.UpdateRole(c.Request.Context(), callerFromContext(c), c.Param("id"), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

// Delete godoc
// @Summary Delete a user with all their requests and files (reviewer)
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} DeleteUserResponse
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	reports, err := h.users.Delete(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if reports == nil {
		reports = []*service.DeletionReport{}
	}
	c.JSON(http.StatusOK, DeleteUserResponse{Success: true, Reports: reports})
}
