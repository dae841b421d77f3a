package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"campus-events/internal/dto"
	"campus-events/internal/service"
	"campus-events/pkg/response"
)

// UserHandler 用户模块 HTTP 处理器
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler 创建 UserHandler
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// GetMe 获取当前用户信息（含已报名活动）
// GET /api/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.userSvc.GetMe(c.Request.Context(), userID)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	response.OK(c, user)
}

// MyEvents 当前用户已报名的活动
// GET /api/users/events
func (h *UserHandler) MyEvents(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	events, err := h.userSvc.MyEvents(c.Request.Context(), userID)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	response.OK(c, events)
}

// UpdateProfile 更新个人资料
// PUT /api/users/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c)
		return
	}

	user, err := h.userSvc.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	response.OK(c, user)
}

// UpdatePreferences 更新偏好标签
// PUT /api/users/preferences
func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c)
		return
	}

	user, err := h.userSvc.UpdatePreferences(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	response.OK(c, user)
}

// ListUsers 用户列表（管理员）
// GET /api/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	actorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, codeInvalidParams, "Invalid pagination parameters")
		return
	}

	users, total, err := h.userSvc.List(c.Request.Context(), actorID, &req)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	response.OKPage(c, users, total, req.GetPage(), req.GetPageSize())
}

// DeleteUser 删除用户（管理员）
// DELETE /api/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.userSvc.Delete(c.Request.Context(), actorID, c.Param("id")); err != nil {
		h.handleUserError(c, err)
		return
	}
	response.Msg(c, "User removed")
}

func (h *UserHandler) handleUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 20001, "User not found")
	case errors.Is(err, service.ErrEmailInUse):
		response.BadRequest(c, 20005, "Email already in use")
	case errors.Is(err, service.ErrPreferencesFormat):
		response.BadRequest(c, 20006, "Preferences must be an array")
	case errors.Is(err, service.ErrUserSelfDelete):
		response.BadRequest(c, 20007, "You cannot delete your own account")
	default:
		handleCommonError(c, err)
	}
}
