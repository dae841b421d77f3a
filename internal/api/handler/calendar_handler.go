package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campus-events/internal/service"
)

// CalendarHandler 日历订阅 HTTP 处理器
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// Feed ICS 订阅源
// GET /api/events/calendar.ics
func (h *CalendarHandler) Feed(c *gin.Context) {
	feed, err := h.calendarSvc.Feed(c.Request.Context())
	if err != nil {
		handleCommonError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="campus-events.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(feed))
}
