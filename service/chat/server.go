package chat

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"HRProject/logger"
	chatmodel "HRProject/module/chat/model"
	usermodel "HRProject/module/user/model"
	"HRProject/tools/errs"
	ids "HRProject/tools/ids"
	security "HRProject/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// TokenVerifier 握手时校验凭证；每条连接恰好调用一次。
type TokenVerifier func(token string) (*security.AuthClaims, error)

// MessageStore 是网关落库/查询消息的依赖。
type MessageStore interface {
	Create(ctx context.Context, senderID, recipientID, content string) (*chatmodel.Message, error)
	FindByID(ctx context.Context, id string) (*chatmodel.Message, error)
	MarkRead(ctx context.Context, id string, at time.Time) (first bool, err error)
}

// UserDirectory 批量取身份展示字段（出站负载反范式化用）。
type UserDirectory interface {
	DisplayByIDs(ctx context.Context, ids []string) (map[string]usermodel.UserRef, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server 是实时网关：握手认证、事件分发、按在线表定向投递。
// 在线表/存储/校验器全部注入，便于单测隔离。
type Server struct {
	dir    *Directory
	msgs   MessageStore
	users  UserDirectory
	verify TokenVerifier
}

func NewServer(dir *Directory, msgs MessageStore, users UserDirectory, verify TokenVerifier) *Server {
	return &Server{dir: dir, msgs: msgs, users: users, verify: verify}
}

func (s *Server) Dir() *Directory { return s.dir }

// extractToken: 连接级 auth 参数优先，其次 Authorization: Bearer 头
func extractToken(c *gin.Context) string {
	if t := strings.TrimSpace(c.Query("token")); t != "" {
		return t
	}
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if authz != "" && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

// HandleWS ===== WebSocket 入口 =====
// 认证在升级前完成：被拒的连接不会进入事件循环。
func (s *Server) HandleWS(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication error: No token provided"})
		return
	}
	claims, err := s.verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication error: Invalid token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), claims.UserID, claims.Role, claims.Email, ws)
	s.dir.Register(client.UserID, client)
	logger.Infof("[HandleWS] user %s connected conn=%s", client.UserID, client.ConnID)

	// 上线通知发给其他所有在线用户（不含自己）
	s.broadcast(client, EvtUserOnline, PresencePayload{UserID: client.UserID})

	s.readLoop(client, ws)

	// ---- 退出阶段：守卫式摘除在线表 + 下线广播 ----
	if s.dir.Unregister(client.UserID, client) {
		logger.Infof("[HandleWS] user %s disconnected conn=%s", client.UserID, client.ConnID)
		s.broadcast(client, EvtUserOffline, PresencePayload{UserID: client.UserID})
	}
	client.Close()
}

// readLoop 逐帧处理：同一连接上的事件按到达顺序跑完一个再取下一个。
func (s *Server) readLoop(client *Client, ws *websocket.Conn) {
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed conn=%s err=%v", client.ConnID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout conn=%s err=%v", client.ConnID, rerr)
			} else {
				logger.Infof("[WS] read err conn=%s err=%v", client.ConnID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrameJSON(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[WS] ParseFrameJSON err conn=%s err=%v sample=%q", client.ConnID, perr, sample)
			continue
		}

		s.dispatch(client, frame)
	}
}

func (s *Server) dispatch(client *Client, frame *Frame) {
	switch frame.Event {
	case EvtMessageSend:
		s.handleSend(client, frame.Data)
	case EvtMessageRead:
		s.handleRead(client, frame.Data)
	case EvtTypingStart, EvtTypingStop:
		s.handleTyping(client, frame.Event, frame.Data)
	default:
		logger.Infof("[WS] no handler for event=%s conn=%s", frame.Event, client.ConnID)
	}
}

// handleSend: 落库 → 批量补齐双方展示字段 → 在线则定向投递 → 回发送确认。
// 任何失败只通知发送方，不影响连接和其他用户。
func (s *Server) handleSend(client *Client, raw json.RawMessage) {
	if client.UserID == "" {
		s.emitError(client, "Unauthorized")
		return
	}
	var p SendPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.emitError(client, "Failed to send message")
		return
	}

	ctx := context.Background()
	m, err := s.msgs.Create(ctx, client.UserID, p.RecipientID, p.Content)
	if err != nil {
		logger.Errorf("[WS] send persist failed user=%s err=%v", client.UserID, err)
		s.emitError(client, "Failed to send message")
		return
	}

	refs, err := s.users.DisplayByIDs(ctx, []string{m.Sender.Hex(), m.Recipient.Hex()})
	if err != nil {
		logger.Errorf("[WS] display lookup failed user=%s err=%v", client.UserID, err)
		s.emitError(client, "Failed to send message")
		return
	}
	payload := m.BuildPayload(refs)

	// 接收方在线才投递 message:new；发送确认无条件回发
	if rc, ok := s.dir.Resolve(p.RecipientID); ok {
		if err := rc.Emit(EvtMessageNew, payload); err != nil {
			logger.Infof("[WS] deliver message:new failed to=%s err=%v", p.RecipientID, err)
		}
	}
	if err := client.Emit(EvtMessageSent, payload); err != nil {
		logger.Infof("[WS] message:sent failed user=%s err=%v", client.UserID, err)
	}
}

// handleRead: 只有收件人能置已读；已读重复请求是幂等 no-op。
// 首次翻转时给在线的发送方回执。
func (s *Server) handleRead(client *Client, raw json.RawMessage) {
	if client.UserID == "" {
		s.emitError(client, "Unauthorized")
		return
	}
	var p ReadPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.emitError(client, "Failed to mark message as read")
		return
	}

	ctx := context.Background()
	m, err := s.msgs.FindByID(ctx, p.MessageID)
	if err != nil {
		if errs.Code(err).Code == errs.NotFoundErrorCode {
			s.emitError(client, "Message not found")
		} else {
			logger.Errorf("[WS] read lookup failed user=%s err=%v", client.UserID, err)
			s.emitError(client, "Failed to mark message as read")
		}
		return
	}

	if m.Recipient.Hex() != client.UserID {
		s.emitError(client, "Forbidden")
		return
	}

	now := time.Now()
	first, err := s.msgs.MarkRead(ctx, p.MessageID, now)
	if err != nil {
		logger.Errorf("[WS] mark read failed user=%s err=%v", client.UserID, err)
		s.emitError(client, "Failed to mark message as read")
		return
	}

	if first {
		if sc, ok := s.dir.Resolve(m.Sender.Hex()); ok {
			if err := sc.Emit(EvtReadReceipt, ReadReceiptPayload{MessageID: p.MessageID, ReadAt: now}); err != nil {
				logger.Infof("[WS] read-receipt failed to=%s err=%v", m.Sender.Hex(), err)
			}
		}
	}

	if err := client.Emit(EvtReadSuccess, ReadSuccessPayload{MessageID: p.MessageID, Read: true}); err != nil {
		logger.Infof("[WS] read-success failed user=%s err=%v", client.UserID, err)
	}
}

// handleTyping: 尽力而为，接收方不在线就丢弃，不回错误
func (s *Server) handleTyping(client *Client, event string, raw json.RawMessage) {
	var p TypingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	if rc, ok := s.dir.Resolve(p.RecipientID); ok {
		_ = rc.Emit(event, PresencePayload{UserID: client.UserID})
	}
}

func (s *Server) emitError(client *Client, msg string) {
	if err := client.Emit(EvtError, ErrorPayload{Message: msg}); err != nil {
		logger.Infof("[WS] emit error failed conn=%s err=%v", client.ConnID, err)
	}
}

// broadcast 给除 except 外的所有在线连接发事件
func (s *Server) broadcast(except *Client, event string, data any) {
	for _, c := range s.dir.Snapshot() {
		if c == except {
			continue
		}
		if err := c.Emit(event, data); err != nil {
			logger.Infof("[WS] broadcast %s failed to=%s err=%v", event, c.UserID, err)
		}
	}
}
