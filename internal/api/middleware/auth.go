package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campus-events/pkg/jwt"
	"campus-events/pkg/response"
)

// 写入 gin.Context 的认证信息键，与 handler 包保持一致
const (
	ctxUserID   = "user_id"
	ctxRole     = "role"
	ctxTokenID  = "jti"
	ctxTokenExp = "token_exp"
)

// RevocationChecker Token 吊销查询（Redis 实现）
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTAuth JWT 认证中间件
// 依次从 Authorization: Bearer <token> 与 x-auth-token 中提取 Access Token。
// revoked 为 nil 时不检查吊销；Redis 出错时降级放行。
func JWTAuth(jwtMgr *jwt.Manager, revoked RevocationChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.AbortError(c, http.StatusUnauthorized, 10002, "No token, authorization denied")
			return
		}

		claims, err := jwtMgr.ParseToken(token)
		if err != nil || claims.TokenType != jwt.TokenTypeAccess {
			response.AbortError(c, http.StatusUnauthorized, 10002, "Token is not valid")
			return
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				logger.Warn("检查 Token 吊销状态失败，降级放行", zap.Error(err))
			} else if isRevoked {
				response.AbortError(c, http.StatusUnauthorized, 10002, "Token is not valid")
				return
			}
		}

		// 将用户信息注入上下文
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Set(ctxTokenID, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(ctxTokenExp, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(c.GetHeader("x-auth-token"))
}
