package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody 统一错误响应结构
type ErrorBody struct {
	Code   int          `json:"code"`
	Msg    string       `json:"msg"`
	Errors []FieldError `json:"errors,omitempty"`
	Error  string       `json:"error,omitempty"` // 仅开发模式下返回
}

// FieldError 字段级校验错误
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// MsgBody 仅包含提示信息的响应（删除、登出等）
type MsgBody struct {
	Msg string `json:"msg"`
}

// Pagination 分页元数据
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PageData 分页响应数据
type PageData struct {
	List       interface{} `json:"list"`
	Pagination Pagination  `json:"pagination"`
}

// 开发模式开关，由路由初始化时设置
var debugDetails bool

// SetDebug 开启后 500 类错误附带 error 详情
func SetDebug(enabled bool) {
	debugDetails = enabled
}

// ── 成功响应 ──

// OK 200 成功响应，直接返回资源本身
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Msg 200 提示信息
func Msg(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, MsgBody{Msg: msg})
}

// OKPage 200 分页成功
func OKPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}
	c.JSON(http.StatusOK, PageData{
		List: list,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// ── 错误响应 ──

// Error 通用错误响应
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, ErrorBody{
		Code: code,
		Msg:  msg,
	})
}

// ErrorWithFields 带字段错误的 400 响应
func ErrorWithFields(c *gin.Context, code int, msg string, fields []FieldError) {
	c.JSON(http.StatusBadRequest, ErrorBody{
		Code:   code,
		Msg:    msg,
		Errors: fields,
	})
}

// AbortError 中止后续处理并写入错误响应（中间件使用）
func AbortError(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, ErrorBody{
		Code: code,
		Msg:  msg,
	})
}

// ── 常见快捷方式 ──

// BadRequest 400
func BadRequest(c *gin.Context, code int, msg string) {
	Error(c, http.StatusBadRequest, code, msg)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, code int, msg string) {
	Error(c, http.StatusUnauthorized, code, msg)
}

// Forbidden 403
func Forbidden(c *gin.Context, code int, msg string) {
	Error(c, http.StatusForbidden, code, msg)
}

// NotFound 404
func NotFound(c *gin.Context, code int, msg string) {
	Error(c, http.StatusNotFound, code, msg)
}

// Conflict 409
func Conflict(c *gin.Context, code int, msg string) {
	Error(c, http.StatusConflict, code, msg)
}

// ServiceUnavailable 503
func ServiceUnavailable(c *gin.Context, code int, msg string) {
	Error(c, http.StatusServiceUnavailable, code, msg)
}

// InternalError 500，开发模式下附带 err 详情
func InternalError(c *gin.Context, err error) {
	body := ErrorBody{Code: 50000, Msg: "Server Error"}
	if debugDetails && err != nil {
		body.Error = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}
