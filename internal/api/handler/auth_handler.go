package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/pumproom/internal/service"
	"github.com/d60-Lab/pumproom/pkg/response"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Login 登录
// @Summary 登录获取 JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录信息"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, w, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		response.Unauthorized(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token, "watcher": w})
}

// CreateWatcher 新建分析员账号
// @Summary 新建 watcher
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body registerRequest true "账号信息"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/watchers [post]
func (h *Handler) CreateWatcher(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	w, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if errors.Is(err, service.ErrUsernameTaken) {
		response.Conflict(c, err.Error(), nil)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, w)
}
