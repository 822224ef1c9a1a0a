package rpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/pkg/jsonrpc"
)

func startTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := newTestServer(&fakeMedia{}, &fakeDownloads{tasks: map[string]models.DownloadTask{}})

	mux := http.NewServeMux()
	mux.Handle("/rpc", s)
	mux.HandleFunc("/rpc/ws", s.ServeWS)
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/rpc/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestServerHTTP(t *testing.T) {
	_, ts := startTestServer(t)

	client := jsonrpc.NewClient(ts.URL + "/rpc")
	var tracks []models.Track
	require.NoError(t, client.Call(t.Context(), MethodMediaSearch, models.SearchRequest{Query: "song"}, &tracks))
	require.Len(t, tracks, 1)
	assert.Equal(t, "song", tracks[0].Name)

	err := client.Call(t.Context(), MethodMediaExtractAudio, models.ExtractRequest{}, nil)
	var rpcErr *jsonrpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jsonrpc.ErrInvalidParams, rpcErr.Code)
}

func TestServerWebSocket(t *testing.T) {
	s, ts := startTestServer(t)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","method":"media.search","params":{"query":"song"},"id":1}`)))
	msg := readMessage(t, conn)
	assert.JSONEq(t, `1`, string(msg["id"]))
	assert.JSONEq(t, `[{"id":"yt:abc","name":"song","duration":null,"author":"","thumbnail":""}]`, string(msg["result"]))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","method":"download.start","params":{"videoId":"abc"},"id":2}`)))
	msg = readMessage(t, conn)
	require.Contains(t, msg, "result")
	assert.Equal(t, 1, s.Hub().Count())

	s.PublishDownload(models.DownloadTask{ID: "task-abc", Status: models.DownloadRunning, Progress: 40})
	msg = readMessage(t, conn)
	assert.JSONEq(t, `"download.progress"`, string(msg["method"]))
	assert.NotContains(t, msg, "id")

	var task models.DownloadTask
	require.NoError(t, json.Unmarshal(msg["params"], &task))
	assert.Equal(t, 40, task.Progress)

	s.PublishDownload(models.DownloadTask{ID: "task-abc", Status: models.DownloadCompleted, Progress: 100})
	msg = readMessage(t, conn)
	require.NoError(t, json.Unmarshal(msg["params"], &task))
	assert.Equal(t, models.DownloadCompleted, task.Status)

	// the subscription ended with the terminal update
	assert.Zero(t, s.Hub().Publish("task-abc", EventDownloadProgress, task))
}

func TestServerWebSocketFastFailure(t *testing.T) {
	downloads := &fakeDownloads{tasks: map[string]models.DownloadTask{}}
	s := newTestServer(&fakeMedia{}, downloads)
	downloads.run = func(task models.DownloadTask) {
		task.Status = models.DownloadFailed
		task.Error = "HTTP 403"
		s.PublishDownload(task)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/rpc/ws", s.ServeWS)
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","method":"download.start","params":{"videoId":"abc"},"id":1}`)))

	// the terminal notification is queued ahead of the reply
	msg := readMessage(t, conn)
	assert.JSONEq(t, `"download.progress"`, string(msg["method"]))
	var task models.DownloadTask
	require.NoError(t, json.Unmarshal(msg["params"], &task))
	assert.Equal(t, models.DownloadFailed, task.Status)
	assert.Equal(t, "HTTP 403", task.Error)

	msg = readMessage(t, conn)
	assert.JSONEq(t, `1`, string(msg["id"]))
	require.Contains(t, msg, "result")

	assert.Zero(t, s.Hub().Publish("task-abc", EventDownloadProgress, task))
}

func TestServerWebSocketParseError(t *testing.T) {
	_, ts := startTestServer(t)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	msg := readMessage(t, conn)
	var rpcErr jsonrpc.Error
	require.NoError(t, json.Unmarshal(msg["error"], &rpcErr))
	assert.Equal(t, jsonrpc.ErrParseError, rpcErr.Code)
}

func TestServerCloseDisconnectsClients(t *testing.T) {
	s, ts := startTestServer(t)
	conn := dial(t, ts)

	require.Eventually(t, func() bool { return s.Hub().Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return s.Hub().Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
