package middleware

import (
	"Recharge/pkg/context"
	"Recharge/pkg/jwt"
	"Recharge/pkg/log"
	"Recharge/pkg/response"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const tokenTypeAccess = "access"

// Auth 校验 Bearer access token，写入 user_id
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, "缺少 Authorization")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Abort(c, http.StatusUnauthorized, "Authorization 格式错误")
			return
		}

		claims, err := jwt.ParseToken(secret, tokenTypeAccess, parts[1])
		if err != nil {
			log.L.Info("invalid token", zap.String("path", c.FullPath()), zap.Error(err))
			response.Abort(c, http.StatusUnauthorized, "登录已失效")
			return
		}
		c.Set(context.CtxUserID, claims.UserID)

		c.Next()
	}
}
