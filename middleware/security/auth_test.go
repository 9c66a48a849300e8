package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	security "HRProject/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jwtOpts = security.DefaultOptions([]byte("mid-test-secret"))

// 测试不起 redis，吊销检查关掉
func testOptions() *Options {
	opts := DefaultOptions(jwtOpts)
	opts.CheckRevoked = false
	return opts
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", handlers...)
	return r
}

func doGet(r *gin.Engine, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddlewareMissingToken(t *testing.T) {
	r := newRouter(Middleware(testOptions()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	w := doGet(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareBadToken(t *testing.T) {
	r := newRouter(Middleware(testOptions()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	w := doGet(r, "Bearer forged.token.here")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareSetsIdentity(t *testing.T) {
	token, _, _, err := security.Generate(jwtOpts, "u-42", "manager", "m@corp.io")
	require.NoError(t, err)

	var gotUser, gotRole string
	r := newRouter(Middleware(testOptions()), func(c *gin.Context) {
		gotUser = CurrentUserID(c)
		gotRole = CurrentRole(c)
		require.NotNil(t, CurrentClaims(c))
		c.Status(http.StatusOK)
	})

	w := doGet(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-42", gotUser)
	assert.Equal(t, "manager", gotRole)
}

func TestRequireRoles(t *testing.T) {
	adminToken, _, _, err := security.Generate(jwtOpts, "u-admin", "admin", "")
	require.NoError(t, err)
	empToken, _, _, err := security.Generate(jwtOpts, "u-emp", "employee", "")
	require.NoError(t, err)

	r := newRouter(Middleware(testOptions()), RequireRoles("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, doGet(r, "Bearer "+adminToken).Code)
	assert.Equal(t, http.StatusForbidden, doGet(r, "Bearer "+empToken).Code)
}
