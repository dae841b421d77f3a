package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"campus-events/pkg/response"
)

// Gin 上下文中由 JWT 中间件注入的键
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxTokenID  = "jti"
	CtxTokenExp = "token_exp"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(CtxUserID)
	if s == "" {
		response.Unauthorized(c, codeUnauthorized, "No token, authorization denied")
		return "", false
	}
	return s, true
}

// tokenMeta 当前访问令牌的 jti 与过期时间
func tokenMeta(c *gin.Context) (string, time.Time) {
	return c.GetString(CtxTokenID), c.GetTime(CtxTokenExp)
}
