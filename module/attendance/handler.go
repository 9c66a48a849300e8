package attendance

import (
	"net/http"
	"time"

	midsec "HRProject/middleware/security"
	attservice "HRProject/module/attendance/service"
	usermodel "HRProject/module/user/model"
	userservice "HRProject/module/user/service"
	"HRProject/tools/errs"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Handler struct {
	att   *attservice.Store
	users *userservice.Store
}

func NewHandler(att *attservice.Store, users *userservice.Store) *Handler {
	return &Handler{att: att, users: users}
}

func fail(c *gin.Context, err error) {
	ce := errs.Code(err)
	msg := ce.Msg
	if ce.Detail != "" {
		msg = ce.Detail
	}
	if ce.Code == errs.ServerInternalError || ce.Code == errs.TransientStoreErrorCode {
		msg = "Internal server error"
	}
	c.JSON(ce.HTTPStatus(), gin.H{"error": msg})
}

func (h *Handler) CheckIn(c *gin.Context) {
	a, err := h.att.CheckIn(c.Request.Context(), midsec.CurrentUserID(c), time.Now())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attendance": a})
}

func (h *Handler) CheckOut(c *gin.Context) {
	a, err := h.att.CheckOut(c.Request.Context(), midsec.CurrentUserID(c), time.Now())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": a})
}

// scope 把请求人的可见范围折算成用户 id 集合：
// 员工只有自己；经理是自己+直属下属；管理员不限。
func (h *Handler) scope(c *gin.Context) ([]primitive.ObjectID, error) {
	me := midsec.CurrentUserID(c)
	switch midsec.CurrentRole(c) {
	case usermodel.RoleAdmin:
		return nil, nil
	case usermodel.RoleManager:
		mid, err := primitive.ObjectIDFromHex(me)
		if err != nil {
			return nil, errs.ErrValidation.WithDetail("invalid user id")
		}
		ids, err := h.users.ManagedIDs(c.Request.Context(), mid)
		if err != nil {
			return nil, err
		}
		return append(ids, mid), nil
	default:
		uid, err := primitive.ObjectIDFromHex(me)
		if err != nil {
			return nil, errs.ErrValidation.WithDetail("invalid user id")
		}
		return []primitive.ObjectID{uid}, nil
	}
}

// List GET ?userId=&from=&to=&status=
// userId 筛选也必须落在可见范围内
func (h *Handler) List(c *gin.Context) {
	ids, err := h.scope(c)
	if err != nil {
		fail(c, err)
		return
	}

	if v := c.Query("userId"); v != "" {
		uid, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		if ids != nil && !containsID(ids, uid) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		ids = []primitive.ObjectID{uid}
	}

	rows, err := h.att.List(c.Request.Context(), attservice.ListFilter{
		UserIDs: ids,
		From:    c.Query("from"),
		To:      c.Query("to"),
		Status:  c.Query("status"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": rows})
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Summary GET ?userId=&month=YYYY-MM  默认查自己、当月
func (h *Handler) Summary(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		userID = midsec.CurrentUserID(c)
	}
	if userID != midsec.CurrentUserID(c) {
		ids, err := h.scope(c)
		if err != nil {
			fail(c, err)
			return
		}
		uid, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		if ids != nil && !containsID(ids, uid) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
	}

	month := c.Query("month")
	if month == "" {
		month = time.Now().Format("2006-01")
	}
	sum, err := h.att.MonthlySummary(c.Request.Context(), userID, month)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": sum, "month": month})
}

type createReq struct {
	UserID   string     `json:"userId" binding:"required"`
	Date     string     `json:"date" binding:"required"`
	CheckIn  *time.Time `json:"checkIn"`
	CheckOut *time.Time `json:"checkOut"`
	Status   string     `json:"status" binding:"required"`
	Notes    string     `json:"notes"`
}

// Create 手工补录，admin/manager 路由
func (h *Handler) Create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId, date and status are required"})
		return
	}

	if midsec.CurrentRole(c) == usermodel.RoleManager {
		ids, err := h.scope(c)
		if err != nil {
			fail(c, err)
			return
		}
		uid, err := primitive.ObjectIDFromHex(req.UserID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		if !containsID(ids, uid) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
	}

	a, err := h.att.Create(c.Request.Context(), attservice.CreateParams{
		UserID:   req.UserID,
		Date:     req.Date,
		CheckIn:  req.CheckIn,
		CheckOut: req.CheckOut,
		Status:   req.Status,
		Notes:    req.Notes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attendance": a})
}

type updateReq struct {
	CheckIn  *time.Time `json:"checkIn"`
	CheckOut *time.Time `json:"checkOut"`
	Status   *string    `json:"status"`
	Notes    *string    `json:"notes"`
}

func (h *Handler) Update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	a, err := h.att.Update(c.Request.Context(), c.Param("id"), attservice.UpdateParams{
		CheckIn:  req.CheckIn,
		CheckOut: req.CheckOut,
		Status:   req.Status,
		Notes:    req.Notes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": a})
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.att.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance record deleted"})
}
