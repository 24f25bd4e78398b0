package monitoring

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

	"marginperceptron/ml"
)

func dial(t *testing.T, hub *Hub, query string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubObserverBroadcastsEvents(t *testing.T) {
	hub := NewHub()
	go hub.Start()
	defer hub.Stop()

	conn := dial(t, hub, "")
	waitForClients(t, hub, 1)

	observer := hub.Observer("run-1", "2d")
	observer.Observe(ml.Event{Kind: ml.EventUpdate, Round: 1, Iteration: 1, Updates: 1, Index: 0, Label: ml.Positive, Gamma: 16, Budget: 12, Weights: []float64{1, 2}})
	observer.Observe(ml.Event{Kind: ml.EventConverged, Round: 1, Updates: 1, Index: ml.NoViolation, Gamma: 16, Budget: 12})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first, second Message
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	assert.Equal(t, TrainingUpdate, first.Type)
	assert.Equal(t, TrainingDone, second.Type)

	var payload TrainingEvent
	require.NoError(t, json.Unmarshal(first.Data, &payload))
	assert.Equal(t, "run-1", payload.RunID)
	assert.Equal(t, "2d", payload.Dataset)
	assert.Equal(t, []float64{1, 2}, payload.Event.Weights)

	require.NoError(t, json.Unmarshal(second.Data, &payload))
	assert.Equal(t, "converged", payload.State)
}

func TestHubRespectsSubscriptions(t *testing.T) {
	hub := NewHub()
	go hub.Start()
	defer hub.Stop()

	conn := dial(t, hub, "?dataset=4d")
	waitForClients(t, hub, 1)

	require.NoError(t, hub.Publish("2d", TrainingUpdate, map[string]int{"n": 1}))
	require.NoError(t, hub.Publish("4d", GuessShrink, map[string]int{"n": 2}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, GuessShrink, msg.Type)
	assert.JSONEq(t, `{"n":2}`, string(msg.Data))
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordRun("4d", true, 30, 3, 1.5, time.Second)
	mc.RecordRun("2d", false, 100, 5e-9, -0.1, time.Second)
	mc.RecordRun("4d", true, 12, 6, 2.5, 2*time.Second)
	mc.RecordFailure("2d")

	snap := mc.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "2d", snap[0].Dataset)
	assert.Equal(t, 2, snap[0].Runs)
	assert.Equal(t, 1, snap[0].Aborted)
	assert.Equal(t, 1, snap[0].Failed)

	assert.Equal(t, 2, snap[1].Converged)
	assert.Equal(t, int64(42), snap[1].TotalUpdates)
	assert.Equal(t, 2.5, snap[1].LastMargin)
}
