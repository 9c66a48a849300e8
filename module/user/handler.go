package user

import (
	"net/http"
	"time"

	"HRProject/global"
	"HRProject/logger"
	midsec "HRProject/middleware/security"
	usermodel "HRProject/module/user/model"
	userservice "HRProject/module/user/service"
	"HRProject/service/redisx"
	"HRProject/tools/errs"
	security "HRProject/tools/security"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	users *userservice.Store
}

func NewHandler(users *userservice.Store) *Handler {
	return &Handler{users: users}
}

// fail 统一错误出口：码→状态码，detail 优先
func fail(c *gin.Context, err error) {
	ce := errs.Code(err)
	msg := ce.Msg
	if ce.Detail != "" {
		msg = ce.Detail
	}
	if ce.Code == errs.ServerInternalError || ce.Code == errs.TransientStoreErrorCode {
		logger.Errorf("[http] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		msg = "Internal server error"
	}
	c.JSON(ce.HTTPStatus(), gin.H{"error": msg})
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login: 邮箱+密码换 token；凭证错误和账号停用都是同一个 401 文案
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, _, _, err := security.Generate(global.JWTOptions(), u.ID.Hex(), u.Role, u.Email)
	if err != nil {
		fail(c, errs.ErrInternal.WithDetail(err.Error()))
		return
	}

	if err := h.users.UpdateLastLogin(c.Request.Context(), u.ID, time.Now()); err != nil {
		logger.Warnf("[Login] update last login failed user=%s err=%v", u.ID.Hex(), err)
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
}

// Logout 把当前 token 的 jti 写进吊销表，存活到 token 自身过期为止
func (h *Handler) Logout(c *gin.Context) {
	claims := midsec.CurrentClaims(c)
	if claims == nil || claims.ID == "" {
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
		return
	}
	expireAt := time.Now()
	if claims.ExpiresAt != nil {
		expireAt = claims.ExpiresAt.Time
	}
	if err := redisx.RevokeToken(c.Request.Context(), claims.ID, expireAt); err != nil {
		fail(c, errs.ErrTransientStore.WithDetail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	u, err := h.users.FindByID(c.Request.Context(), midsec.CurrentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

type createReq struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Role        string `json:"role"`
	Department  string `json:"department"`
	Designation string `json:"designation"`
	ManagerID   string `json:"managerId"`
}

// Create 管理员任意；经理不能建管理员账号，且不填 manager 时默认挂到自己名下
func (h *Handler) Create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, email and password are required"})
		return
	}
	if midsec.CurrentRole(c) == usermodel.RoleManager {
		if req.Role == usermodel.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		if req.ManagerID == "" {
			req.ManagerID = midsec.CurrentUserID(c)
		}
	}
	u, err := h.users.Create(c.Request.Context(), userservice.CreateParams{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		Department:  req.Department,
		Designation: req.Designation,
		ManagerID:   req.ManagerID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// List: 管理员看全员，经理只看直属下属
func (h *Handler) List(c *gin.Context) {
	var managerID string
	switch midsec.CurrentRole(c) {
	case usermodel.RoleAdmin:
		managerID = ""
	case usermodel.RoleManager:
		managerID = midsec.CurrentUserID(c)
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return
	}
	users, err := h.users.List(c.Request.Context(), managerID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Get: 管理员任意；经理看自己和直属下属；员工只看自己
func (h *Handler) Get(c *gin.Context) {
	id := c.Param("id")
	me := midsec.CurrentUserID(c)

	u, err := h.users.FindByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	switch midsec.CurrentRole(c) {
	case usermodel.RoleAdmin:
	case usermodel.RoleManager:
		if u.ID.Hex() != me && (u.Manager == nil || u.Manager.Hex() != me) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
	default:
		if u.ID.Hex() != me {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

type updateReq struct {
	Name        *string `json:"name"`
	Role        *string `json:"role"`
	Department  *string `json:"department"`
	Designation *string `json:"designation"`
	Status      *string `json:"status"`
	ManagerID   *string `json:"managerId"`
}

func (h *Handler) Update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	u, err := h.users.Update(c.Request.Context(), c.Param("id"), userservice.UpdateParams{
		Name:        req.Name,
		Role:        req.Role,
		Department:  req.Department,
		Designation: req.Designation,
		Status:      req.Status,
		ManagerID:   req.ManagerID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *Handler) Delete(c *gin.Context) {
	if c.Param("id") == midsec.CurrentUserID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete your own account"})
		return
	}
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}
