package ws

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"peoplepulse/realtime-hub/internal/hub"
	"peoplepulse/realtime-hub/internal/security"
)

// frame is the union of ack and event frames for test-side decoding.
type frame struct {
	Type    string          `json:"type"`
	ReplyTo string          `json:"reply_to"`
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Holder  string          `json:"holder"`
	Data    json.RawMessage `json:"data"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T, validator *security.TokenValidator) (*httptest.Server, *hub.Hub) {
	t.Helper()
	h := hub.New(hub.Options{})
	srv := httptest.NewServer(NewHandler(h, validator, nil))
	t.Cleanup(srv.Close)
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, id, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(Inbound{ID: id, Type: msgType, Payload: raw}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readAck reads frames until the ack answering replyTo arrives, skipping
// interleaved broadcast events.
func readAck(t *testing.T, conn *websocket.Conn, replyTo string) frame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read waiting for ack %q: %v", replyTo, err)
		}
		if f.Type == "ack" && f.ReplyTo == replyTo {
			return f
		}
	}
}

// readEvent reads frames until the named event arrives.
func readEvent(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read waiting for event %q: %v", event, err)
		}
		if f.Type == "event" && f.Event == event {
			return f
		}
	}
}

func joinRoom(t *testing.T, conn *websocket.Conn, tenantID, userID string) frame {
	t.Helper()
	send(t, conn, "join", MsgJoinRoom, JoinPayload{TenantID: tenantID, UserID: userID, DisplayName: userID})
	ack := readAck(t, conn, "join")
	if !ack.Success {
		t.Fatalf("join-room failed: %s", ack.Error)
	}
	return ack
}

func TestHandler_JoinRoom(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c1 := dial(t, srv, "")

	ack := joinRoom(t, c1, "acme", "u1")

	var data struct {
		ConnectionID  string            `json:"your_connection_id"`
		MembersOnline []json.RawMessage `json:"users_online"`
	}
	if err := json.Unmarshal(ack.Data, &data); err != nil {
		t.Fatalf("unmarshal ack data: %v", err)
	}
	if data.ConnectionID == "" {
		t.Error("ack should carry the assigned connection id")
	}
	if len(data.MembersOnline) != 1 {
		t.Errorf("users_online has %d entries, want 1", len(data.MembersOnline))
	}
}

func TestHandler_JoinRoom_NotifiesExistingMembers(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c1 := dial(t, srv, "")
	joinRoom(t, c1, "acme", "u1")

	c2 := dial(t, srv, "")
	joinRoom(t, c2, "acme", "u2")

	ev := readEvent(t, c1, "user:joined")
	var joined struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(ev.Payload, &joined); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if joined.UserID != "u2" {
		t.Errorf("joined user = %q, want %q", joined.UserID, "u2")
	}
}

func TestHandler_LockContention(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c1 := dial(t, srv, "")
	joinRoom(t, c1, "acme", "u1")
	c2 := dial(t, srv, "")
	joinRoom(t, c2, "acme", "u2")

	send(t, c1, "l1", MsgLockAction, LockPayload{RecordID: "rec-1"})
	if ack := readAck(t, c1, "l1"); !ack.Success {
		t.Fatalf("first lock failed: %s", ack.Error)
	}

	send(t, c2, "l2", MsgLockAction, LockPayload{RecordID: "rec-1"})
	ack := readAck(t, c2, "l2")
	if ack.Success {
		t.Fatal("second lock should fail")
	}
	if ack.Error != ErrCodeAlreadyLocked {
		t.Errorf("error = %q, want %q", ack.Error, ErrCodeAlreadyLocked)
	}
	if ack.Holder != "u1" {
		t.Errorf("holder = %q, want %q", ack.Holder, "u1")
	}
}

func TestHandler_CursorMove_NoEchoNoAck(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c1 := dial(t, srv, "")
	joinRoom(t, c1, "acme", "u1")
	c2 := dial(t, srv, "")
	joinRoom(t, c2, "acme", "u2")

	send(t, c1, "", MsgCursorMove, CursorPayload{X: 10, Y: 20, Page: "dashboard"})

	ev := readEvent(t, c2, "cursor:update")
	var cursor struct {
		UserID string  `json:"user_id"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Page   string  `json:"page"`
	}
	if err := json.Unmarshal(ev.Payload, &cursor); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cursor.UserID != "u1" || cursor.X != 10 || cursor.Y != 20 || cursor.Page != "dashboard" {
		t.Errorf("cursor = %+v, want u1/10/20/dashboard", cursor)
	}

	// The originator gets no echo and no ack; the next thing it sees must be
	// the ack for a follow-up message.
	send(t, c1, "ping", MsgDashboardSubscribe, nil)
	ack := readAck(t, c1, "ping")
	if !ack.Success {
		t.Fatalf("dashboard-subscribe failed: %s", ack.Error)
	}
}

func TestHandler_Disconnect_BroadcastsUserLeft(t *testing.T) {
	srv, h := newTestServer(t, nil)
	c1 := dial(t, srv, "")
	joinRoom(t, c1, "acme", "u1")
	c2 := dial(t, srv, "")
	joinRoom(t, c2, "acme", "u2")

	_ = c1.Close()

	ev := readEvent(t, c2, "user:left")
	var left struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(ev.Payload, &left); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if left.UserID != "u1" {
		t.Errorf("left user = %q, want %q", left.UserID, "u1")
	}

	// The registry catches up as the read pump unwinds.
	waitFor(t, func() bool { return h.ConnectedUsersCount("acme") == 1 })
}

func TestHandler_OperationBeforeJoin(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c1 := dial(t, srv, "")

	send(t, c1, "p1", MsgPageChange, PagePayload{Page: "nr1"})
	ack := readAck(t, c1, "p1")
	if ack.Success {
		t.Fatal("page-change before join-room should fail")
	}
	if ack.Error != ErrCodeNotBound {
		t.Errorf("error = %q, want %q", ack.Error, ErrCodeNotBound)
	}
}

func TestHandler_UnknownType(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c1 := dial(t, srv, "")

	send(t, c1, "x1", "self-destruct", nil)
	ack := readAck(t, c1, "x1")
	if ack.Success {
		t.Fatal("unknown message type should fail")
	}
	if ack.Error != ErrCodeUnknownType {
		t.Errorf("error = %q, want %q", ack.Error, ErrCodeUnknownType)
	}
}

func TestHandler_BadPayload(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c1 := dial(t, srv, "")

	if err := c1.WriteJSON(Inbound{ID: "b1", Type: MsgJoinRoom, Payload: json.RawMessage(`"not-an-object"`)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ack := readAck(t, c1, "b1")
	if ack.Error != ErrCodeBadPayload {
		t.Errorf("error = %q, want %q", ack.Error, ErrCodeBadPayload)
	}
}

func TestHandler_AuthRequired(t *testing.T) {
	key, validator := newAuthSetup(t)
	srv, _ := newTestServer(t, validator)

	// No token: the handshake itself is refused.
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("dial without token should fail")
	}

	// Valid token: join must match the claims.
	token := signTestToken(t, key, "u1", "acme")
	c1 := dial(t, srv, token)
	send(t, c1, "j1", MsgJoinRoom, JoinPayload{TenantID: "other-org", UserID: "u1", DisplayName: "Ana"})
	ack := readAck(t, c1, "j1")
	if ack.Success {
		t.Fatal("join-room for a tenant outside the token claims should fail")
	}
	if ack.Error != ErrCodeUnauthorized {
		t.Errorf("error = %q, want %q", ack.Error, ErrCodeUnauthorized)
	}

	send(t, c1, "j2", MsgJoinRoom, JoinPayload{TenantID: "acme", UserID: "u1", DisplayName: "Ana"})
	if ack := readAck(t, c1, "j2"); !ack.Success {
		t.Fatalf("claim-matching join failed: %s", ack.Error)
	}
}

func newAuthSetup(t *testing.T) (*rsa.PrivateKey, *security.TokenValidator) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	validator, err := security.NewTokenValidator(pubPEM, "", "")
	if err != nil {
		t.Fatalf("NewTokenValidator: %v", err)
	}
	return key, validator
}

func signTestToken(t *testing.T, key *rsa.PrivateKey, userID, orgID string) string {
	t.Helper()
	claims := security.ConnectionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		OrgID: orgID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
