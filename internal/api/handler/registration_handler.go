package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"campus-events/internal/service"
	"campus-events/pkg/response"
)

// RegistrationHandler 报名模块 HTTP 处理器
type RegistrationHandler struct {
	registrationSvc service.RegistrationService
}

// NewRegistrationHandler 创建 RegistrationHandler
func NewRegistrationHandler(registrationSvc service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrationSvc: registrationSvc}
}

// Register 报名活动
// POST /api/events/:id/register
func (h *RegistrationHandler) Register(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	event, err := h.registrationSvc.Register(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}
	response.OK(c, event)
}

// Cancel 取消报名
// DELETE /api/events/:id/register
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	event, err := h.registrationSvc.Cancel(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}
	response.OK(c, event)
}

// Reconcile 触发报名对账（管理员）
// POST /api/admin/reconcile
func (h *RegistrationHandler) Reconcile(c *gin.Context) {
	actorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.registrationSvc.ReconcileAs(c.Request.Context(), actorID)
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *RegistrationHandler) handleRegistrationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		response.NotFound(c, 30001, "Event not found")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 20001, "User not found")
	case errors.Is(err, service.ErrEventFull):
		response.BadRequest(c, 40001, "Event is full")
	case errors.Is(err, service.ErrAlreadyRegistered):
		response.BadRequest(c, 40002, "Already registered for this event")
	case errors.Is(err, service.ErrNotRegistered):
		response.BadRequest(c, 40003, "Not registered for this event")
	case errors.Is(err, service.ErrRegistrationConflict):
		response.Conflict(c, 40004, "Registration state changed, please retry")
	default:
		handleCommonError(c, err)
	}
}
