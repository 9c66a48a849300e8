package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	chatmodel "HRProject/module/chat/model"
	usermodel "HRProject/module/user/model"
	"HRProject/tools/errs"
	security "HRProject/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ---- 测试替身 ----

type fakeMsgStore struct {
	mu        sync.Mutex
	byID      map[string]*chatmodel.Message
	createErr error
}

func newFakeMsgStore() *fakeMsgStore {
	return &fakeMsgStore{byID: map[string]*chatmodel.Message{}}
}

func (f *fakeMsgStore) Create(_ context.Context, senderID, recipientID, content string) (*chatmodel.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	sender, err := primitive.ObjectIDFromHex(senderID)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid sender id")
	}
	recipient, err := primitive.ObjectIDFromHex(recipientID)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid recipient id")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errs.ErrValidation.WithDetail("content is empty")
	}
	now := time.Now()
	m := &chatmodel.Message{
		ID:        primitive.NewObjectID(),
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.byID[m.ID.Hex()] = m
	return m, nil
}

func (f *fakeMsgStore) FindByID(_ context.Context, id string) (*chatmodel.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound.WithDetail("message not found")
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMsgStore) MarkRead(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return false, errs.ErrNotFound.WithDetail("message not found")
	}
	if m.Read {
		return false, nil
	}
	m.Read = true
	m.ReadAt = &at
	return true, nil
}

func (f *fakeMsgStore) seed(sender, recipient primitive.ObjectID, content string) *chatmodel.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &chatmodel.Message{
		ID:        primitive.NewObjectID(),
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		CreatedAt: time.Now(),
	}
	f.byID[m.ID.Hex()] = m
	return m
}

type fakeUserDir struct{}

func (fakeUserDir) DisplayByIDs(_ context.Context, ids []string) (map[string]usermodel.UserRef, error) {
	out := make(map[string]usermodel.UserRef, len(ids))
	for _, id := range ids {
		out[id] = usermodel.UserRef{ID: id, Name: "user-" + id[:6], Role: "employee"}
	}
	return out, nil
}

// ---- 环境装配 ----

type testEnv struct {
	srv   *httptest.Server
	store *fakeMsgStore
	dir   *Directory
}

func newTestEnv(t *testing.T, tokens map[string]*security.AuthClaims) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeMsgStore()
	dir := NewDirectory()
	verify := func(token string) (*security.AuthClaims, error) {
		if claims, ok := tokens[token]; ok {
			return claims, nil
		}
		return nil, errors.New("bad token")
	}
	gw := NewServer(dir, store, fakeUserDir{}, verify)

	r := gin.New()
	r.GET("/chat", gw.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: store, dir: dir}
}

func claimsFor(userID string) *security.AuthClaims {
	return &security.AuthClaims{UserID: userID, Role: "employee", Email: userID + "@test.local"}
}

func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/chat?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func readFrame(t *testing.T, conn *websocket.Conn) *Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	frame, err := ParseFrameJSON(raw)
	require.NoError(t, err)
	return frame
}

func expectEvent(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, event, frame.Event)
	return frame.Data
}

// 短暂等待内不应有任何帧到达
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no frame")
}

// ---- 用例 ----

func TestHandshakeRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t, nil)
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/chat"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeRejectsInvalidToken(t *testing.T) {
	env := newTestEnv(t, map[string]*security.AuthClaims{})
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/chat?token=forged"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSendDeliversToRecipient(t *testing.T) {
	alice := primitive.NewObjectID().Hex()
	bob := primitive.NewObjectID().Hex()
	env := newTestEnv(t, map[string]*security.AuthClaims{
		"tok-a": claimsFor(alice),
		"tok-b": claimsFor(bob),
	})

	ca := env.dial(t, "tok-a")
	cb := env.dial(t, "tok-b")

	// bob 上线时 alice 会收到 user:online
	data := expectEvent(t, ca, EvtUserOnline)
	var pres PresencePayload
	require.NoError(t, json.Unmarshal(data, &pres))
	assert.Equal(t, bob, pres.UserID)

	sendFrame(t, ca, EvtMessageSend, SendPayload{RecipientID: bob, Content: "hello bob"})

	// 接收方拿到 message:new
	data = expectEvent(t, cb, EvtMessageNew)
	var got chatmodel.Payload
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "hello bob", got.Content)
	assert.Equal(t, alice, got.Sender.ID)
	assert.Equal(t, bob, got.Recipient.ID)
	assert.False(t, got.Read)

	// 发送方拿到 message:sent
	data = expectEvent(t, ca, EvtMessageSent)
	var echo chatmodel.Payload
	require.NoError(t, json.Unmarshal(data, &echo))
	assert.Equal(t, got.ID, echo.ID)
}

func TestSendToOfflineRecipient(t *testing.T) {
	alice := primitive.NewObjectID().Hex()
	carol := primitive.NewObjectID().Hex()
	env := newTestEnv(t, map[string]*security.AuthClaims{"tok-a": claimsFor(alice)})

	ca := env.dial(t, "tok-a")
	sendFrame(t, ca, EvtMessageSend, SendPayload{RecipientID: carol, Content: "are you there"})

	// 仍有发送确认，消息已落库
	data := expectEvent(t, ca, EvtMessageSent)
	var echo chatmodel.Payload
	require.NoError(t, json.Unmarshal(data, &echo))
	assert.Equal(t, carol, echo.Recipient.ID)

	m, err := env.store.FindByID(context.Background(), echo.ID)
	require.NoError(t, err)
	assert.Equal(t, "are you there", m.Content)
}

func TestSendPersistFailure(t *testing.T) {
	alice := primitive.NewObjectID().Hex()
	env := newTestEnv(t, map[string]*security.AuthClaims{"tok-a": claimsFor(alice)})
	env.store.createErr = errs.ErrTransientStore.WithDetail("db down")

	ca := env.dial(t, "tok-a")
	sendFrame(t, ca, EvtMessageSend, SendPayload{RecipientID: primitive.NewObjectID().Hex(), Content: "x"})

	data := expectEvent(t, ca, EvtError)
	var ep ErrorPayload
	require.NoError(t, json.Unmarshal(data, &ep))
	assert.Equal(t, "Failed to send message", ep.Message)
}

func TestReadReceiptFlow(t *testing.T) {
	aliceID := primitive.NewObjectID()
	bobID := primitive.NewObjectID()
	env := newTestEnv(t, map[string]*security.AuthClaims{
		"tok-a": claimsFor(aliceID.Hex()),
		"tok-b": claimsFor(bobID.Hex()),
	})
	m := env.store.seed(aliceID, bobID, "unread one")

	ca := env.dial(t, "tok-a")
	cb := env.dial(t, "tok-b")
	expectEvent(t, ca, EvtUserOnline) // bob 上线

	// 首次置读：收件人拿 success，发送方拿回执
	sendFrame(t, cb, EvtMessageRead, ReadPayload{MessageID: m.ID.Hex()})

	data := expectEvent(t, cb, EvtReadSuccess)
	var ok ReadSuccessPayload
	require.NoError(t, json.Unmarshal(data, &ok))
	assert.Equal(t, m.ID.Hex(), ok.MessageID)
	assert.True(t, ok.Read)

	data = expectEvent(t, ca, EvtReadReceipt)
	var rr ReadReceiptPayload
	require.NoError(t, json.Unmarshal(data, &rr))
	assert.Equal(t, m.ID.Hex(), rr.MessageID)
	assert.False(t, rr.ReadAt.IsZero())

	// 重复置读幂等：还有 success，但不再有回执
	sendFrame(t, cb, EvtMessageRead, ReadPayload{MessageID: m.ID.Hex()})
	expectEvent(t, cb, EvtReadSuccess)
	expectSilence(t, ca)
}

func TestReadForbiddenForSender(t *testing.T) {
	aliceID := primitive.NewObjectID()
	bobID := primitive.NewObjectID()
	env := newTestEnv(t, map[string]*security.AuthClaims{"tok-a": claimsFor(aliceID.Hex())})
	m := env.store.seed(aliceID, bobID, "mine")

	ca := env.dial(t, "tok-a")
	sendFrame(t, ca, EvtMessageRead, ReadPayload{MessageID: m.ID.Hex()})

	data := expectEvent(t, ca, EvtError)
	var ep ErrorPayload
	require.NoError(t, json.Unmarshal(data, &ep))
	assert.Equal(t, "Forbidden", ep.Message)
}

func TestReadUnknownMessage(t *testing.T) {
	alice := primitive.NewObjectID().Hex()
	env := newTestEnv(t, map[string]*security.AuthClaims{"tok-a": claimsFor(alice)})

	ca := env.dial(t, "tok-a")
	sendFrame(t, ca, EvtMessageRead, ReadPayload{MessageID: primitive.NewObjectID().Hex()})

	data := expectEvent(t, ca, EvtError)
	var ep ErrorPayload
	require.NoError(t, json.Unmarshal(data, &ep))
	assert.Equal(t, "Message not found", ep.Message)
}

func TestTypingForward(t *testing.T) {
	alice := primitive.NewObjectID().Hex()
	bob := primitive.NewObjectID().Hex()
	env := newTestEnv(t, map[string]*security.AuthClaims{
		"tok-a": claimsFor(alice),
		"tok-b": claimsFor(bob),
	})

	ca := env.dial(t, "tok-a")
	cb := env.dial(t, "tok-b")
	expectEvent(t, ca, EvtUserOnline)

	sendFrame(t, ca, EvtTypingStart, TypingPayload{RecipientID: bob})
	data := expectEvent(t, cb, EvtTypingStart)
	var p PresencePayload
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, alice, p.UserID)

	sendFrame(t, ca, EvtTypingStop, TypingPayload{RecipientID: bob})
	expectEvent(t, cb, EvtTypingStop)

	// 对不在线的人敲字无声丢弃，连接不受影响
	sendFrame(t, ca, EvtTypingStart, TypingPayload{RecipientID: primitive.NewObjectID().Hex()})
	sendFrame(t, ca, EvtMessageSend, SendPayload{RecipientID: bob, Content: "still alive"})
	expectEvent(t, cb, EvtMessageNew)
}

func TestPresenceLifecycle(t *testing.T) {
	alice := primitive.NewObjectID().Hex()
	bob := primitive.NewObjectID().Hex()
	env := newTestEnv(t, map[string]*security.AuthClaims{
		"tok-a": claimsFor(alice),
		"tok-b": claimsFor(bob),
	})

	ca := env.dial(t, "tok-a")
	cb := env.dial(t, "tok-b")

	data := expectEvent(t, ca, EvtUserOnline)
	var p PresencePayload
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, bob, p.UserID)

	require.NoError(t, cb.Close())

	data = expectEvent(t, ca, EvtUserOffline)
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, bob, p.UserID)
}

// 同一用户重连后，旧连接断开不能打出假下线
func TestReconnectSuppressesStaleOffline(t *testing.T) {
	alice := primitive.NewObjectID().Hex()
	bob := primitive.NewObjectID().Hex()
	env := newTestEnv(t, map[string]*security.AuthClaims{
		"tok-a": claimsFor(alice),
		"tok-b": claimsFor(bob),
	})

	ca := env.dial(t, "tok-a")
	cbOld := env.dial(t, "tok-b")
	expectEvent(t, ca, EvtUserOnline) // bob 首连

	cbNew := env.dial(t, "tok-b")
	expectEvent(t, ca, EvtUserOnline) // bob 重连，再次通知

	// 旧连接关闭：在线表仍指向新连接，不得广播 user:offline
	require.NoError(t, cbOld.Close())
	time.Sleep(200 * time.Millisecond) // 等旧连接的退出流程跑完

	got, ok := env.dir.Resolve(bob)
	require.True(t, ok)
	assert.Equal(t, bob, got.UserID)

	// 哨兵消息：ca 收到的下一帧必须是发送确认而不是假下线
	sendFrame(t, ca, EvtMessageSend, SendPayload{RecipientID: bob, Content: "ping"})
	expectEvent(t, cbNew, EvtMessageNew)
	expectEvent(t, ca, EvtMessageSent)

	// 新连接关闭才算真下线
	require.NoError(t, cbNew.Close())
	data := expectEvent(t, ca, EvtUserOffline)
	var p PresencePayload
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, bob, p.UserID)
}
