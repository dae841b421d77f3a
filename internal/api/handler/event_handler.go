package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"campus-events/internal/dto"
	"campus-events/internal/service"
	"campus-events/pkg/response"
)

// EventHandler 活动模块 HTTP 处理器
type EventHandler struct {
	eventSvc service.EventService
}

// NewEventHandler 创建 EventHandler
func NewEventHandler(eventSvc service.EventService) *EventHandler {
	return &EventHandler{eventSvc: eventSvc}
}

// List 活动列表（按时间升序）
// GET /api/events?category=&from=&to=
func (h *EventHandler) List(c *gin.Context) {
	var req dto.EventListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, codeInvalidParams, "Invalid filter")
		return
	}

	events, err := h.eventSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleEventError(c, err)
		return
	}
	response.OK(c, events)
}

// Get 活动详情
// GET /api/events/:id
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.eventSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleEventError(c, err)
		return
	}
	response.OK(c, event)
}

// Create 创建活动（管理员）
// POST /api/events
func (h *EventHandler) Create(c *gin.Context) {
	actorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeInvalidParams, "Invalid event data")
		return
	}

	event, err := h.eventSvc.Create(c.Request.Context(), actorID, &req)
	if err != nil {
		h.handleEventError(c, err)
		return
	}
	response.OK(c, event)
}

// Update 更新活动（管理员）
// PUT /api/events/:id
func (h *EventHandler) Update(c *gin.Context) {
	actorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeInvalidParams, "Invalid event data")
		return
	}

	event, err := h.eventSvc.Update(c.Request.Context(), actorID, c.Param("id"), &req)
	if err != nil {
		h.handleEventError(c, err)
		return
	}
	response.OK(c, event)
}

// Delete 删除活动（管理员）
// DELETE /api/events/:id
func (h *EventHandler) Delete(c *gin.Context) {
	actorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.eventSvc.Delete(c.Request.Context(), actorID, c.Param("id")); err != nil {
		h.handleEventError(c, err)
		return
	}
	response.Msg(c, "Event removed")
}

func (h *EventHandler) handleEventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		response.NotFound(c, 30001, "Event not found")
	case errors.Is(err, service.ErrCapacityBelowCount):
		response.BadRequest(c, 30002, "Capacity cannot be lower than current registrations")
	default:
		handleCommonError(c, err)
	}
}
