package leave

import (
	"net/http"

	midsec "HRProject/middleware/security"
	leaveservice "HRProject/module/leave/service"
	usermodel "HRProject/module/user/model"
	userservice "HRProject/module/user/service"
	"HRProject/tools/errs"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Handler struct {
	leaves *leaveservice.Store
	users  *userservice.Store
}

func NewHandler(leaves *leaveservice.Store, users *userservice.Store) *Handler {
	return &Handler{leaves: leaves, users: users}
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

type createReq struct {
	Type      string `json:"type" binding:"required"`
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type, startDate, endDate and reason are required"})
		return
	}
	l, err := h.leaves.Create(c.Request.Context(), leaveservice.CreateParams{
		UserID:    midsec.CurrentUserID(c),
		Type:      req.Type,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"leave": l})
}

// scope 同考勤：员工自己，经理自己+下属，管理员不限
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

// List GET ?status=
func (h *Handler) List(c *gin.Context) {
	ids, err := h.scope(c)
	if err != nil {
		fail(c, err)
		return
	}
	rows, err := h.leaves.List(c.Request.Context(), leaveservice.ListFilter{
		UserIDs: ids,
		Status:  c.Query("status"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaves": rows})
}

type decideReq struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment"`
}

// Decide PATCH /:id  审批。经理只能审直属下属；不能审自己的单。
func (h *Handler) Decide(c *gin.Context) {
	var req decideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	me := midsec.CurrentUserID(c)
	l, err := h.leaves.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if l.User.Hex() == me {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot decide your own leave request"})
		return
	}
	if midsec.CurrentRole(c) == usermodel.RoleManager {
		ids, err := h.scope(c)
		if err != nil {
			fail(c, err)
			return
		}
		found := false
		for _, id := range ids {
			if id == l.User {
				found = true
				break
			}
		}
		if !found {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
	}

	out, err := h.leaves.Decide(c.Request.Context(), l.ID.Hex(), me, req.Status, req.Comment)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leave": out})
}

// Delete 员工撤回自己的 pending 单；管理员可删任何单
func (h *Handler) Delete(c *gin.Context) {
	isAdmin := midsec.CurrentRole(c) == usermodel.RoleAdmin
	err := h.leaves.Delete(c.Request.Context(), c.Param("id"), midsec.CurrentUserID(c), isAdmin)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Leave request deleted"})
}
