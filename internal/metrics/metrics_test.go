package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"voxelgate.ai/internal/sim/gateway"
)

type fixedSource gateway.SessionMetrics

func (f fixedSource) Metrics() gateway.SessionMetrics { return gateway.SessionMetrics(f) }

func TestEventsAreCountedByKind(t *testing.T) {
	e := New()
	e.Emit(gateway.Event{Kind: gateway.KindActivate, Dimension: "overworld"})
	e.Emit(gateway.Event{Kind: gateway.KindActivate, Dimension: "overworld"})
	e.Emit(gateway.Event{Kind: gateway.KindTeleport, Dimension: "nether", Detail: map[string]any{"ok": true}})
	e.Emit(gateway.Event{Kind: gateway.KindTeleport, Dimension: "nether", Detail: map[string]any{"ok": false, "reason": "insufficient_power"}})

	require.Equal(t, 2.0, testutil.ToFloat64(e.events.WithLabelValues("ACTIVATE", "overworld")))
	require.Equal(t, 2.0, testutil.ToFloat64(e.events.WithLabelValues("TELEPORT", "nether")))
	require.Equal(t, 1.0, testutil.ToFloat64(e.failures.WithLabelValues("insufficient_power")))
}

func TestHandlerExportsSessionGauges(t *testing.T) {
	e := New()
	e.RegisterSession(fixedSource{Session: "main", Tick: 42, Portals: 3, StoredPower: 17})
	e.Gauge("index_queue_depth", "Pending index writes.", func() float64 { return 5 })
	e.Counter("ws_dropped_total", "Events dropped for slow clients.", func() float64 { return 2 })

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(b)

	for _, want := range []string{
		"voxelgate_session_tick 42",
		"voxelgate_session_portals 3",
		"voxelgate_session_stored_power 17",
		"voxelgate_index_queue_depth 5",
		"voxelgate_ws_dropped_total 2",
	} {
		require.True(t, strings.Contains(body, want), "missing %q", want)
	}
}
