package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iseevalue/chat/internal/conversation"
	"github.com/iseevalue/chat/internal/model"
	"github.com/iseevalue/chat/internal/scheduler"
	"github.com/iseevalue/chat/internal/storage/memory"
)

type wireMessage struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type testEnv struct {
	hub   *Hub
	store *conversation.Store
	clock *scheduler.Manual
	files *memory.Client
	conn  *websocket.Conn
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := scheduler.NewManual(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC))
	store, err := conversation.NewStore(clock, conversation.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SeedDefaults(); err != nil {
		t.Fatal(err)
	}
	files := memory.New(time.Hour)
	hub := NewHub(store, files, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cctx, ccancel := context.WithCancel(context.Background())
		c := NewClient(hub, conn, ClientOptions{})
		c.Start(cctx, ccancel)
		hub.Register(c)
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		cancel()
		srv.Close()
		store.Close()
	})

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return &testEnv{hub: hub, store: store, clock: clock, files: files, conn: conn}
}

func (e *testEnv) send(t *testing.T, msg IncomingMessage) {
	t.Helper()
	if err := e.conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func (e *testEnv) next(t *testing.T) wireMessage {
	t.Helper()
	if err := e.conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var m wireMessage
	if err := e.conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

// until читает сообщения, пока не встретит нужный тип.
func (e *testEnv) until(t *testing.T, typ EventType) wireMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		if m := e.next(t); m.Type == typ {
			return m
		}
	}
	t.Fatalf("no %s event", typ)
	return wireMessage{}
}

func (e *testEnv) waitPending(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for e.clock.Pending() != n {
		if time.Now().After(deadline) {
			t.Fatalf("pending timers: want %d, got %d", n, e.clock.Pending())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewMessageBroadcastsLifecycle(t *testing.T) {
	e := newTestEnv(t)
	e.send(t, IncomingMessage{Type: EventNewMessage, ChatID: "1", Content: "hi"})

	var created NewMessagePayload
	if err := json.Unmarshal(e.until(t, EventNewMessage).Payload, &created); err != nil {
		t.Fatal(err)
	}
	if created.ChatID != "1" || created.Message.ID != 4 || created.Message.Status != model.MessageStatusSending {
		t.Fatalf("created: %+v", created)
	}

	e.waitPending(t, 1)
	e.clock.Advance(time.Second)
	var st MessageStatusPayload
	if err := json.Unmarshal(e.until(t, EventMessageStatus).Payload, &st); err != nil {
		t.Fatal(err)
	}
	if st.Status != model.MessageStatusSent || len(st.MessageIDs) != 1 || st.MessageIDs[0] != 4 {
		t.Fatalf("status: %+v", st)
	}

	e.clock.Advance(2 * time.Second)
	var reply NewMessagePayload
	if err := json.Unmarshal(e.until(t, EventNewMessage).Payload, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Message.Sender != model.SenderAssistant || reply.Message.ID != 5 {
		t.Fatalf("reply: %+v", reply.Message)
	}
}

func TestNewMessageErrors(t *testing.T) {
	e := newTestEnv(t)

	cases := []struct {
		in   IncomingMessage
		want string
	}{
		{IncomingMessage{Type: EventNewMessage, ChatID: "1", Content: "   "}, "message text or attachment required"},
		{IncomingMessage{Type: EventNewMessage, ChatID: "42", Content: "hi"}, "chat not found"},
		{IncomingMessage{Type: EventNewMessage, ChatID: "1", AttachmentID: "missing"}, "attachment not found"},
		{IncomingMessage{Type: "bogus"}, "unknown event type"},
	}
	for _, tc := range cases {
		e.send(t, tc.in)
		m := e.until(t, EventError)
		var text string
		if err := json.Unmarshal(m.Payload, &text); err != nil {
			t.Fatal(err)
		}
		if text != tc.want {
			t.Fatalf("%+v: want %q, got %q", tc.in, tc.want, text)
		}
	}
	if n := e.store.Pending(); n != 0 {
		t.Fatalf("rejected messages must not schedule work, pending=%d", n)
	}
}

func TestNewMessageWithStoredAttachment(t *testing.T) {
	e := newTestEnv(t)
	att := model.Attachment{ID: "f1", Name: "report.pdf", ContentType: conversation.PDFContentType, Size: 3}
	if err := e.files.Put(context.Background(), att, []byte("pdf")); err != nil {
		t.Fatal(err)
	}

	e.send(t, IncomingMessage{Type: EventNewMessage, ChatID: "2", AttachmentID: "f1"})
	var created NewMessagePayload
	if err := json.Unmarshal(e.until(t, EventNewMessage).Payload, &created); err != nil {
		t.Fatal(err)
	}
	if created.Message.Attachment == nil || created.Message.Attachment.Name != "report.pdf" {
		t.Fatalf("attachment missing: %+v", created.Message)
	}
}

func TestChatOpenedActivates(t *testing.T) {
	e := newTestEnv(t)
	e.send(t, IncomingMessage{Type: EventChatOpened, ChatID: "2"})

	var upd ChatPayload
	if err := json.Unmarshal(e.until(t, EventChatUpdated).Payload, &upd); err != nil {
		t.Fatal(err)
	}
	if upd.Chat.ID != "2" || upd.Chat.UnreadCount != 0 || !upd.Chat.Active {
		t.Fatalf("summary: %+v", upd.Chat)
	}
	if e.store.Active() != "2" {
		t.Fatalf("active: %s", e.store.Active())
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(conversation.ErrUnsupportedAttachment); got != conversation.UnsupportedAttachmentNotice {
		t.Fatalf("got %q", got)
	}
	if got := UserMessage(context.Canceled); got != "internal error" {
		t.Fatalf("got %q", got)
	}
}
