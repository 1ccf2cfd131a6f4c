package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/notify"
)

func (f *apiFixture) dialSocket(t *testing.T, path string, header http.Header) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestOrderSocket_RejectsWithPolicyViolation(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	tests := []struct {
		name   string
		path   string
		header http.Header
	}{
		{name: "missing credential", path: "/api/ws/orders/c1"},
		{name: "invalid credential", path: "/api/ws/orders/c1?token=broken"},
		{name: "foreign identity", path: "/api/ws/orders/c1?token=" + f.tokens["c2"]},
		{
			name:   "foreign identity in header",
			path:   "/api/ws/orders/c1",
			header: http.Header{"Authorization": []string{"Bearer " + f.tokens["owner-1"]}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn := f.dialSocket(t, tc.path, tc.header)

			_, _, err := conn.ReadMessage()
			require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
		})
	}
	require.Zero(t, f.hub.Identities())
}

func TestOrderSocket_ReceivesOrderUpdates(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	customerConn := f.dialSocket(t, "/api/ws/orders/c1?token="+f.tokens["c1"], nil)
	partnerConn := f.dialSocket(t, "/api/ws/orders/owner-1", http.Header{
		"Authorization": []string{"Bearer " + f.tokens["owner-1"]},
	})

	require.Eventually(t, func() bool {
		return f.hub.Connections("c1") == 1 && f.hub.Connections("owner-1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, customerConn.WriteMessage(websocket.TextMessage, []byte("hello")))
	_, raw, err := customerConn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"ping","message":"connected"}`, string(raw))

	order := f.createOrder(t)

	for _, conn := range []*websocket.Conn{customerConn, partnerConn} {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Type string `json:"type"`
			Data struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		require.Equal(t, notify.MessageTypeOrderUpdate, msg.Type)
		require.Equal(t, order.ID, msg.Data.ID)
		require.Equal(t, "in_queue", msg.Data.Status)
	}

	require.NoError(t, customerConn.Close())
	require.Eventually(t, func() bool {
		return f.hub.Connections("c1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}
