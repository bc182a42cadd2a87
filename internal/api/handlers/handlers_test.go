package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/voicerelay/internal/gateway"
	"github.com/yoockh/voicerelay/internal/logger"
	"github.com/yoockh/voicerelay/internal/models"
	"github.com/yoockh/voicerelay/internal/storage"
	"github.com/yoockh/voicerelay/internal/utils"
)

type fakeAgent struct {
	mu     sync.Mutex
	ready  bool
	texts  []string
	audio  [][]byte
	status models.SessionStatus
}

func (a *fakeAgent) SendUserText(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.ready {
		return utils.E(utils.CodeNotReady, "fake", "not ready", nil)
	}
	a.texts = append(a.texts, text)
	return nil
}

func (a *fakeAgent) SendAudio(_ context.Context, pcm []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.ready {
		return utils.E(utils.CodeNotReady, "fake", "not ready", nil)
	}
	a.audio = append(a.audio, pcm)
	return nil
}

func (a *fakeAgent) Status() models.SessionStatus { return a.status }

func (a *fakeAgent) received() ([]string, [][]byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.texts...), append([][]byte(nil), a.audio...)
}

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	srv   *httptest.Server
	hub   *gateway.Hub
	agent *fakeAgent
	dir   string
}

func newTestServer(t *testing.T, ready bool) *testServer {
	t.Helper()

	log := logger.Discard()
	hub := gateway.NewHub(log)
	agent := &fakeAgent{ready: ready, status: models.SessionStatus{State: "ready", Backend: "fake", NextTurn: 2}}
	dir := t.TempDir()

	r := gin.New()
	r.GET("/ws", NewWSHandler(agent, hub, log, time.Second).Connect)
	r.GET("/session", NewSessionHandler(agent, hub).Get)
	r.GET("/artifacts/:name", NewArtifactHandler(storage.NewLocalDir(dir)).Get)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, hub: hub, agent: agent, dir: dir}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return ts.hub.Count() >= 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readOutbound(t *testing.T, conn *websocket.Conn) models.OutboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	var msg models.OutboundMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWSForwardsTextAndAudio(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, true)
	conn := ts.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"userText":"hello"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"userText":"  "}`)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}))

	require.Eventually(t, func() bool {
		texts, audio := ts.agent.received()
		return len(texts) == 2 && len(audio) == 1
	}, time.Second, 5*time.Millisecond)
	texts, audio := ts.agent.received()
	assert.Equal(t, []string{"hello", "  "}, texts)
	assert.Equal(t, []byte{1, 2, 3, 4}, audio[0])
}

func TestWSDropsMalformedMessages(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, true)
	conn := ts.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"other":"x"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"userText":"after"}`)))

	require.Eventually(t, func() bool {
		texts, _ := ts.agent.received()
		return len(texts) == 1
	}, time.Second, 5*time.Millisecond)
	texts, _ := ts.agent.received()
	assert.Equal(t, []string{"after"}, texts)
}

func TestWSRepliesNotReadyToSenderOnly(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	sender := ts.dial(t)
	other := ts.dial(t)
	require.Eventually(t, func() bool { return ts.hub.Count() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"userText":"too early"}`)))

	msg := readOutbound(t, sender)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "NOT_READY", msg.Error.Code)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestWSReceivesBroadcasts(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, true)
	a := ts.dial(t)
	b := ts.dial(t)
	require.Eventually(t, func() bool { return ts.hub.Count() == 2 }, time.Second, 5*time.Millisecond)

	payload, err := json.Marshal(models.TextMessage("Hi there"))
	require.NoError(t, err)
	require.NoError(t, ts.hub.Broadcast(context.Background(), payload))

	assert.Equal(t, "Hi there", readOutbound(t, a).Text)
	assert.Equal(t, "Hi there", readOutbound(t, b).Text)
}

func TestWSDisconnectUnregisters(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, true)
	conn := ts.dial(t)
	require.Equal(t, 1, ts.hub.Count())

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	require.Eventually(t, func() bool { return ts.hub.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSessionStatus(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, true)
	ts.dial(t)

	resp, err := http.Get(ts.srv.URL + "/session")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st models.SessionStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "ready", st.State)
	assert.Equal(t, int64(2), st.NextTurn)
	assert.Equal(t, 1, st.Clients)
}

func TestArtifactDownload(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, true)
	require.NoError(t, os.WriteFile(filepath.Join(ts.dir, "output-0.wav"), []byte("RIFF"), 0o644))

	cases := []struct {
		name   string
		path   string
		status int
	}{
		{name: "existing", path: "/artifacts/output-0.wav", status: http.StatusOK},
		{name: "missing", path: "/artifacts/output-9.wav", status: http.StatusNotFound},
		{name: "invalid name", path: "/artifacts/chatlog.txt", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(ts.srv.URL + tc.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.status == http.StatusOK {
				assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
			}
		})
	}
}
