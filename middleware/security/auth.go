package security

import (
	"net/http"
	"strings"

	"HRProject/service/redisx"
	"HRProject/tools/errs"
	security "HRProject/tools/security"

	"github.com/gin-gonic/gin"
)

// —— context key ——
// 后续模块统一用这几个 key 读取当前用户
const (
	CtxUserIDKey = "authUserId"
	CtxRoleKey   = "authRole"
	CtxEmailKey  = "authEmail"
	CtxClaimsKey = "authClaims"
)

type Options struct {
	JWT security.Options

	EnableAuthorizationBearer bool // 默认 true
	CheckRevoked              bool // 默认 true，查 redis 吊销表
}

func DefaultOptions(jwt security.Options) *Options {
	return &Options{
		JWT:                       jwt,
		EnableAuthorizationBearer: true,
		CheckRevoked:              true,
	}
}

func extractToken(c *gin.Context, opts *Options) string {
	token := strings.TrimSpace(c.GetHeader("authorization"))
	if token != "" && opts.EnableAuthorizationBearer {
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[len("bearer "):])
		}
	}
	return token
}

// Middleware 校验请求头里的凭证，把身份写入 gin context。
// 凭证缺失/伪造/已吊销都在这里拦下，业务 handler 只看 context。
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c, opts)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		claims, err := security.Verify(opts.JWT, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		if opts.CheckRevoked && claims.ID != "" {
			revoked, err := redisx.IsTokenRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				c.AbortWithStatusJSON(errs.ErrTransientStore.HTTPStatus(), gin.H{"error": "Authentication unavailable"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxRoleKey, claims.Role)
		c.Set(CtxEmailKey, claims.Email)
		c.Set(CtxClaimsKey, claims)

		c.Next()
	}
}

// RequireRoles 只放行 context 里角色在白名单内的请求。
// 必须挂在 Middleware 之后。
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := c.GetString(CtxRoleKey)
		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// CurrentUserID 从 context 取当前用户 ID；未经 Middleware 的路由返回 ""
func CurrentUserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}

func CurrentRole(c *gin.Context) string {
	return c.GetString(CtxRoleKey)
}

func CurrentClaims(c *gin.Context) *security.AuthClaims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*security.AuthClaims)
	return claims
}
