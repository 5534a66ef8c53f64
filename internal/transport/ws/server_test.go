package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"voxelgate.ai/internal/protocol"
	"voxelgate.ai/internal/sim/gateway"
)

type eventEnvelope struct {
	Type  string        `json:"type"`
	Event gateway.Event `json:"event"`
}

func dial(t *testing.T, h *Hub, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, v))
}

func TestHubStreamsEvents(t *testing.T) {
	h := NewHub(func() protocol.WelcomeMsg {
		return protocol.WelcomeMsg{Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, Session: "main", Tick: 3}
	}, nil)
	conn := dial(t, h, "")

	var welcome protocol.WelcomeMsg
	readJSON(t, conn, &welcome)
	require.Equal(t, protocol.TypeWelcome, welcome.Type)
	require.Equal(t, "main", welcome.Session)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	h.Emit(gateway.Event{Tick: 4, Session: "main", Kind: gateway.KindActivate, Dimension: "overworld", Pos: cube.Pos{0, 0, 0}})
	var got eventEnvelope
	readJSON(t, conn, &got)
	require.Equal(t, protocol.TypeEvent, got.Type)
	require.Equal(t, gateway.KindActivate, got.Event.Kind)
	require.Equal(t, uint64(4), got.Event.Tick)
	require.Eventually(t, func() bool { return h.Sent() == 1 }, 2*time.Second, 5*time.Millisecond)

	h.Close()
	require.Equal(t, 0, h.Clients())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "err: %v", err)
}

func TestHubFiltersPerClient(t *testing.T) {
	h := NewHub(nil, nil)
	conn := dial(t, h, "?kinds=power,clear&dimension=nether")
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	h.Emit(gateway.Event{Tick: 1, Kind: gateway.KindActivate, Dimension: "nether"})
	h.Emit(gateway.Event{Tick: 2, Kind: gateway.KindPower, Dimension: "overworld"})
	h.Emit(gateway.Event{Tick: 3, Kind: gateway.KindPower, Dimension: "nether"})

	var got eventEnvelope
	readJSON(t, conn, &got)
	require.Equal(t, uint64(3), got.Event.Tick)
}

func TestSendLatestDropsOldest(t *testing.T) {
	ch := make(chan []byte, 2)
	require.True(t, sendLatest(ch, []byte("a")))
	require.True(t, sendLatest(ch, []byte("b")))
	require.False(t, sendLatest(ch, []byte("c")))
	require.Equal(t, "b", string(<-ch))
	require.Equal(t, "c", string(<-ch))
}
