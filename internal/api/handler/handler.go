package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"campus-events/internal/service"
	pkgerrors "campus-events/pkg/errors"
	"campus-events/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Event        *EventHandler
	Registration *RegistrationHandler
	Export       *ExportHandler
	Calendar     *CalendarHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth),
		User:         NewUserHandler(svc.User),
		Event:        NewEventHandler(svc.Event),
		Registration: NewRegistrationHandler(svc.Registration),
		Export:       NewExportHandler(svc.Export),
		Calendar:     NewCalendarHandler(svc.Calendar),
	}
}

// ── 通用错误码 ──

const (
	codeInvalidParams = 10001
	codeUnauthorized  = 10002
	codeForbidden     = 10003
	codeConflict      = 10009
)

// 各模块未单独处理的错误统一在这里翻译
func handleCommonError(c *gin.Context, err error) {
	if verr, ok := service.IsValidationError(err); ok {
		fields := make([]response.FieldError, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, response.FieldError{Field: f.Field, Msg: f.Msg})
		}
		response.ErrorWithFields(c, codeInvalidParams, verr.Msg, fields)
		return
	}

	switch {
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, codeForbidden, "Access denied. Admin privileges required.")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Error(c, http.StatusConflict, codeConflict, "Resource was modified concurrently, please retry")
	default:
		response.InternalError(c, err)
	}
}

// bindFailed 请求体无法解析
func bindFailed(c *gin.Context) {
	response.BadRequest(c, codeInvalidParams, "Invalid request body")
}
