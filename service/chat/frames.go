package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// 入站事件（客户端 → 服务端）
const (
	EvtMessageSend = "message:send"
	EvtMessageRead = "message:read"
	EvtTypingStart = "typing:start"
	EvtTypingStop  = "typing:stop"
)

// 出站事件（服务端 → 客户端）
const (
	EvtUserOnline   = "user:online"
	EvtUserOffline  = "user:offline"
	EvtMessageNew   = "message:new"
	EvtMessageSent  = "message:sent"
	EvtReadReceipt  = "message:read-receipt"
	EvtReadSuccess  = "message:read-success"
	EvtError        = "error"
)

// Frame 是线上帧：{"event": "...", "data": {...}}
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	frame := &Frame{}
	if err := json.Unmarshal(raw, frame); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if frame.Event == "" {
		return nil, fmt.Errorf("frame missing event name")
	}
	return frame, nil
}

// ---- 事件负载 ----

type SendPayload struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

type ReadPayload struct {
	MessageID string `json:"messageId"`
}

type TypingPayload struct {
	RecipientID string `json:"recipientId"`
}

type PresencePayload struct {
	UserID string `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type ReadReceiptPayload struct {
	MessageID string    `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
}

type ReadSuccessPayload struct {
	MessageID string `json:"messageId"`
	Read      bool   `json:"read"`
}
