package signal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Publisher/internal/domain"
)

type recorder struct {
	mu           sync.Mutex
	loggedIn     int
	loginErrors  []string
	answers      []string
	openErrors   []string
	candidates   []candidateMsg
	disconnected int
	serverErrors []string
}

func (r *recorder) LoggedIn() { r.mu.Lock(); r.loggedIn++; r.mu.Unlock() }
func (r *recorder) LoggedInError(reason string) {
	r.mu.Lock()
	r.loginErrors = append(r.loginErrors, reason)
	r.mu.Unlock()
}
func (r *recorder) Opened(sdp string) { r.mu.Lock(); r.answers = append(r.answers, sdp); r.mu.Unlock() }
func (r *recorder) OpenedError(reason string) {
	r.mu.Lock()
	r.openErrors = append(r.openErrors, reason)
	r.mu.Unlock()
}
func (r *recorder) RemoteCandidate(mid string, index int, candidate string) {
	r.mu.Lock()
	r.candidates = append(r.candidates, candidateMsg{SDPMid: mid, SDPMLineIndex: index, Candidate: candidate})
	r.mu.Unlock()
}
func (r *recorder) Disconnected() { r.mu.Lock(); r.disconnected++; r.mu.Unlock() }
func (r *recorder) ServerError(reason string) {
	r.mu.Lock()
	r.serverErrors = append(r.serverErrors, reason)
	r.mu.Unlock()
}

func (r *recorder) snapshot() recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorder{
		loggedIn:     r.loggedIn,
		loginErrors:  append([]string(nil), r.loginErrors...),
		answers:      append([]string(nil), r.answers...),
		openErrors:   append([]string(nil), r.openErrors...),
		candidates:   append([]candidateMsg(nil), r.candidates...),
		disconnected: r.disconnected,
		serverErrors: append([]string(nil), r.serverErrors...),
	}
}

// fakeServer replies to each inbound message type with a scripted list of frames.
type fakeServer struct {
	t       *testing.T
	srv     *httptest.Server
	replies map[string][]any

	mu       sync.Mutex
	received []map[string]any
	conns    []*websocket.Conn
}

func newFakeServer(t *testing.T, replies map[string][]any) *fakeServer {
	return newSlowFakeServer(t, replies, 0)
}

// newSlowFakeServer holds each handshake for delay before upgrading.
func newSlowFakeServer(t *testing.T, replies map[string][]any, delay time.Duration) *fakeServer {
	fs := &fakeServer{t: t, replies: replies}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.mu.Lock()
		fs.conns = append(fs.conns, conn)
		fs.mu.Unlock()
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var m map[string]any
			if json.Unmarshal(data, &m) != nil {
				continue
			}
			fs.mu.Lock()
			fs.received = append(fs.received, m)
			fs.mu.Unlock()
			typ, _ := m["type"].(string)
			for _, reply := range fs.replies[typ] {
				if err := conn.WriteJSON(reply); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) url() string { return "ws" + strings.TrimPrefix(fs.srv.URL, "http") }

func (fs *fakeServer) messages() []map[string]any {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]map[string]any(nil), fs.received...)
}

func (fs *fakeServer) types() []string {
	var out []string
	for _, m := range fs.messages() {
		typ, _ := m["type"].(string)
		out = append(out, typ)
	}
	return out
}

func (fs *fakeServer) dropAll() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, c := range fs.conns {
		_ = c.Close()
	}
}

func newTestClient(t *testing.T, url string) *Client {
	cfg := domain.SessionConfig{
		ServiceURL:  url,
		StreamName:  "cam1",
		Credentials: domain.Credentials{UserID: "alice", Password: "secret"},
	}
	c, err := NewClient(cfg, domain.ModeStandard, time.Second, 0, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient(domain.SessionConfig{ServiceURL: "ftp://example"}, domain.ModeStandard, 0, 0, zerolog.Nop())
	assert.ErrorIs(t, err, ErrBadURL)

	_, err = NewClient(domain.SessionConfig{ServiceURL: "https://"}, domain.ModeStandard, 0, 0, zerolog.Nop())
	assert.ErrorIs(t, err, ErrBadURL)
}

func TestNormalizeURL(t *testing.T) {
	got, err := normalizeURL("https://example.com/ws")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/ws", got)

	got, err = normalizeURL(" http://example.com ")
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com", got)
}

func TestConnect_LoginAndPublish(t *testing.T) {
	fs := newFakeServer(t, map[string][]any{
		typeLogin: {typeMsg{Type: typeLoggedIn}},
		typePublish: {
			map[string]any{"type": typeAnswer, "sdp": "v=0 answer"},
			candidateMsg{Type: typeCandidate, Candidate: "candidate:1 1 udp 1 1.2.3.4 5000 typ host", SDPMid: "0", SDPMLineIndex: 0},
			typeMsg{Type: typeEndOfCandidates},
		},
	})
	rec := &recorder{}
	c := newTestClient(t, fs.url())

	require.True(t, c.Connect(fs.url(), rec))
	require.Eventually(t, func() bool { return rec.snapshot().loggedIn == 1 }, 2*time.Second, 10*time.Millisecond)

	login := fs.messages()[0]
	assert.Equal(t, "alice", login["user"])
	assert.Equal(t, "secret", login["password"])
	assert.Equal(t, "cam1", login["label"])
	assert.Equal(t, "standard", login["mode"])

	require.True(t, c.Open("v=0 offer", "h264", "opus", "cam1", true))
	require.Eventually(t, func() bool { return len(rec.snapshot().candidates) == 2 }, 2*time.Second, 10*time.Millisecond)

	got := rec.snapshot()
	assert.Equal(t, []string{"v=0 answer"}, got.answers)
	assert.Equal(t, "0", got.candidates[0].SDPMid)
	assert.Contains(t, got.candidates[0].Candidate, "typ host")
	assert.Empty(t, got.candidates[1].Candidate)

	publish := fs.messages()[1]
	assert.Equal(t, "h264", publish["videoCodec"])
	assert.Equal(t, "opus", publish["audioCodec"])
	assert.Equal(t, true, publish["audio"])

	c.Disconnect(true)
	assert.Equal(t, 0, rec.snapshot().disconnected)
}

func TestTrickle(t *testing.T) {
	fs := newFakeServer(t, nil)
	c := newTestClient(t, fs.url())
	require.True(t, c.Connect(fs.url(), &recorder{}))

	c.Trickle("1", 1, "candidate:2 1 tcp 1 10.0.0.1 9 typ host tcptype active", false)
	c.Trickle("", 0, "", true)
	require.Eventually(t, func() bool { return len(fs.messages()) == 3 }, 2*time.Second, 10*time.Millisecond)

	msgs := fs.messages()
	assert.Equal(t, typeCandidate, msgs[1]["type"])
	assert.Equal(t, "1", msgs[1]["sdpMid"])
	assert.EqualValues(t, 1, msgs[1]["sdpMLineIndex"])
	assert.Equal(t, typeEndOfCandidates, msgs[2]["type"])
	c.Disconnect(false)
}

func TestLoginError(t *testing.T) {
	fs := newFakeServer(t, map[string][]any{
		typeLogin: {map[string]any{"type": typeLoginError, "code": 401, "error": "bad token"}},
	})

	rec := &recorder{}
	c := newTestClient(t, fs.url())
	require.True(t, c.Connect(fs.url(), rec))
	require.Eventually(t, func() bool { return len(rec.snapshot().loginErrors) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "bad token", rec.snapshot().loginErrors[0])
	c.Disconnect(false)
}

func TestPublishErrorWithCodeOnly(t *testing.T) {
	fs := newFakeServer(t, map[string][]any{
		typePublish: {map[string]any{"type": typePublishError, "code": 503}},
	})
	rec := &recorder{}
	c := newTestClient(t, fs.url())
	require.True(t, c.Connect(fs.url(), rec))
	require.True(t, c.Open("v=0", "vp8", "opus", "cam1", true))
	require.Eventually(t, func() bool { return len(rec.snapshot().openErrors) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "code 503", rec.snapshot().openErrors[0])
	c.Disconnect(false)
}

func TestServerPingGetsPong(t *testing.T) {
	fs := newFakeServer(t, map[string][]any{
		typeLogin: {typeMsg{Type: typePing}},
	})
	c := newTestClient(t, fs.url())
	require.True(t, c.Connect(fs.url(), &recorder{}))
	require.Eventually(t, func() bool {
		types := fs.types()
		return len(types) == 2 && types[1] == typePong
	}, 2*time.Second, 10*time.Millisecond)
	c.Disconnect(false)
}

func TestRemoteDropReportsDisconnectedOnce(t *testing.T) {
	fs := newFakeServer(t, map[string][]any{typeLogin: {typeMsg{Type: typeLoggedIn}}})
	rec := &recorder{}
	c := newTestClient(t, fs.url())
	require.True(t, c.Connect(fs.url(), rec))
	require.Eventually(t, func() bool { return rec.snapshot().loggedIn == 1 }, 2*time.Second, 10*time.Millisecond)

	fs.dropAll()
	require.Eventually(t, func() bool { return rec.snapshot().disconnected == 1 }, 2*time.Second, 10*time.Millisecond)

	c.Disconnect(false)
	c.Disconnect(true)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.snapshot().disconnected)
}

func TestDisconnectSendsBye(t *testing.T) {
	fs := newFakeServer(t, nil)
	rec := &recorder{}
	c := newTestClient(t, fs.url())
	require.True(t, c.Connect(fs.url(), rec))

	c.Disconnect(true)
	require.Eventually(t, func() bool {
		types := fs.types()
		return len(types) == 2 && types[1] == typeBye
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, rec.snapshot().disconnected)
	assert.False(t, c.Open("v=0", "vp8", "opus", "cam1", true))
}

func TestConnectFailsWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	c := newTestClient(t, url)
	assert.False(t, c.Connect(url, &recorder{}))
}

func TestDisconnectDuringDialAbortsConnect(t *testing.T) {
	fs := newSlowFakeServer(t, map[string][]any{typeLogin: {typeMsg{Type: typeLoggedIn}}}, 300*time.Millisecond)
	rec := &recorder{}
	c := newTestClient(t, fs.url())

	result := make(chan bool, 1)
	go func() { result <- c.Connect(fs.url(), rec) }()
	time.Sleep(50 * time.Millisecond)
	c.Disconnect(true)

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return")
	}
	assert.Nil(t, c.current())

	time.Sleep(400 * time.Millisecond)
	assert.NotContains(t, fs.types(), typeLogin)
	got := rec.snapshot()
	assert.Zero(t, got.loggedIn)
	assert.Zero(t, got.disconnected)
}

func TestConnectAfterDisconnectIsRejected(t *testing.T) {
	fs := newFakeServer(t, nil)
	c := newTestClient(t, fs.url())
	c.Disconnect(false)
	assert.False(t, c.Connect(fs.url(), &recorder{}))
	assert.Empty(t, fs.types())
}

func TestServerErrorReported(t *testing.T) {
	fs := newFakeServer(t, map[string][]any{
		typeLogin: {
			typeMsg{Type: typeLoggedIn},
			map[string]any{"type": typeError, "error": "stream limit reached"},
		},
	})
	rec := &recorder{}
	c := newTestClient(t, fs.url())
	require.True(t, c.Connect(fs.url(), rec))
	require.Eventually(t, func() bool { return len(rec.snapshot().serverErrors) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "stream limit reached", rec.snapshot().serverErrors[0])
	assert.Equal(t, 1, rec.snapshot().loggedIn)
	c.Disconnect(false)
}
