package chat

import (
	"net/http"
	"time"

	midsec "HRProject/middleware/security"
	chatmodel "HRProject/module/chat/model"
	chatservice "HRProject/module/chat/service"
	usermodel "HRProject/module/user/model"
	userservice "HRProject/module/user/service"
	gate "HRProject/service/chat"
	"HRProject/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

// Handler 是聊天的 REST 面。写路径落库后借在线表把事件推给对端，
// 和 WebSocket 路径推的是同一组事件。
type Handler struct {
	msgs  *chatservice.Store
	users *userservice.Store
	dir   *gate.Directory
}

func NewHandler(msgs *chatservice.Store, users *userservice.Store, dir *gate.Directory) *Handler {
	return &Handler{msgs: msgs, users: users, dir: dir}
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

// refsFor 把一批消息涉及的双方 id 去重后一次查齐
func (h *Handler) refsFor(c *gin.Context, msgs []*chatmodel.Message) (map[string]usermodel.UserRef, error) {
	ids := make([]string, 0, len(msgs)*2)
	for _, m := range msgs {
		ids = append(ids, m.Sender.Hex(), m.Recipient.Hex())
	}
	if len(ids) == 0 {
		return map[string]usermodel.UserRef{}, nil
	}
	return h.users.DisplayByIDs(c.Request.Context(), ids)
}

// List GET messages?userId=&limit=&before=  倒序翻页
func (h *Handler) List(c *gin.Context) {
	me := midsec.CurrentUserID(c)

	var before time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be RFC3339"})
			return
		}
		before = t
	}

	msgs, err := h.msgs.ListFor(c.Request.Context(), me, c.Query("userId"), cast.ToInt(c.Query("limit")), before)
	if err != nil {
		fail(c, err)
		return
	}
	refs, err := h.refsFor(c, msgs)
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]chatmodel.Payload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.BuildPayload(refs))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

type sendReq struct {
	RecipientID string `json:"recipientId" binding:"required"`
	Content     string `json:"content" binding:"required"`
}

// Send 落库 + 对端在线则实时推 message:new
func (h *Handler) Send(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipientId and content are required"})
		return
	}

	m, err := h.msgs.Create(c.Request.Context(), midsec.CurrentUserID(c), req.RecipientID, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	refs, err := h.users.DisplayByIDs(c.Request.Context(), []string{m.Sender.Hex(), m.Recipient.Hex()})
	if err != nil {
		fail(c, err)
		return
	}
	payload := m.BuildPayload(refs)

	h.dir.EmitTo(req.RecipientID, gate.EvtMessageNew, payload)
	c.JSON(http.StatusCreated, gin.H{"message": payload})
}

// MarkRead PATCH messages/:id/read  仅收件人；重复调用幂等。
// 首次翻转给在线的发送方推已读回执。
func (h *Handler) MarkRead(c *gin.Context) {
	me := midsec.CurrentUserID(c)

	m, err := h.msgs.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if m.Recipient.Hex() != me {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return
	}

	now := time.Now()
	first, err := h.msgs.MarkRead(c.Request.Context(), m.ID.Hex(), now)
	if err != nil {
		fail(c, err)
		return
	}
	if first {
		h.dir.EmitTo(m.Sender.Hex(), gate.EvtReadReceipt,
			gate.ReadReceiptPayload{MessageID: m.ID.Hex(), ReadAt: now})
	}
	c.JSON(http.StatusOK, gin.H{"messageId": m.ID.Hex(), "read": true})
}

// ReadAll PATCH messages/read-all?userId=  批量已读；userId 非空时只清该会话
func (h *Handler) ReadAll(c *gin.Context) {
	n, err := h.msgs.MarkAllRead(c.Request.Context(), midsec.CurrentUserID(c), c.Query("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

type conversationOut struct {
	Peer          usermodel.UserRef `json:"peer"`
	LastMessage   chatmodel.Payload `json:"lastMessage"`
	UnreadCount   int64             `json:"unreadCount"`
	TotalMessages int64             `json:"totalMessages"`
}

// Conversations 会话列表：聚合 + 一次 $in 补齐展示字段
func (h *Handler) Conversations(c *gin.Context) {
	me := midsec.CurrentUserID(c)

	rows, err := h.msgs.Conversations(c.Request.Context(), me)
	if err != nil {
		fail(c, err)
		return
	}

	ids := make([]string, 0, len(rows)+1)
	ids = append(ids, me)
	for _, r := range rows {
		ids = append(ids, r.PeerID)
	}
	refs, err := h.users.DisplayByIDs(c.Request.Context(), ids)
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]conversationOut, 0, len(rows))
	for _, r := range rows {
		out = append(out, conversationOut{
			Peer:          refs[r.PeerID],
			LastMessage:   r.LastMessage.BuildPayload(refs),
			UnreadCount:   r.UnreadCount,
			TotalMessages: r.TotalMessages,
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}
