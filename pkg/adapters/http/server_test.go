package http_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/topograph"
	httpadapter "github.com/aretw0/topograph/pkg/adapters/http"
	"github.com/aretw0/topograph/pkg/observability"
)

const seed = `{
	"signal": "sig-1",
	"nodes": [
		{"id": "sat", "type": "satellite", "data": {"label": "Hispasat"}, "position": {"x": 0, "y": 0}},
		{"id": "rx", "type": "ird", "data": {"label": "IRD 1"}, "position": {"x": 300, "y": 0},
			"handles": [{"id": "in-left-1", "type": "target", "position": "left"}, {"id": "out-right-1", "type": "source", "position": "right"}]},
		{"id": "mon", "data": {"label": "Monitor"}, "position": {"x": 600, "y": 0}}
	],
	"edges": [
		{"id": "e1", "source": "sat", "target": "rx", "data": {"autoLabel": true}}
	]
}`

type envelope struct {
	OK      bool           `json:"ok"`
	Node    map[string]any `json:"node"`
	Edge    map[string]any `json:"edge"`
	AuditID string         `json:"auditId"`
	Status  int            `json:"status"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
}

func newHandler(t *testing.T, opts ...httpadapter.Option) http.Handler {
	t.Helper()
	eng := topograph.New()
	t.Cleanup(func() { _ = eng.Close() })

	h := httpadapter.NewHandler(eng, opts...)
	w := do(t, h, http.MethodPut, "/channels/ch-1", seed)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return h
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpadapter.ActorHeader, "op-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestHealthAndInfo(t *testing.T) {
	h := httpadapter.NewHandler(topograph.New())

	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), topograph.Version)
}

func TestMutations(t *testing.T) {
	h := newHandler(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"move", http.MethodPatch, "/channels/ch-1/nodes/mon/position", `{"position": {"x": 610, "y": 20}}`, http.StatusOK, ""},
		{"move bare object", http.MethodPatch, "/channels/ch-1/nodes/mon/position", `{"x": 620, "y": 20}`, http.StatusOK, ""},
		{"move non-numeric", http.MethodPatch, "/channels/ch-1/nodes/mon/position", `{"x": "hola", "y": 20}`, http.StatusBadRequest, "invalid_input"},
		{"relabel", http.MethodPatch, "/channels/ch-1/nodes/rx/label", `{"label": "IRD A"}`, http.StatusOK, ""},
		{"unknown node", http.MethodPatch, "/channels/ch-1/nodes/ghost/label", `{"label": "x"}`, http.StatusNotFound, "not_found"},
		{"tooltip", http.MethodPatch, "/channels/ch-1/edges/e1/tooltip", `{"tooltipTitle": "Feed", "tooltip": null}`, http.StatusOK, ""},
		{"edge label", http.MethodPatch, "/channels/ch-1/edges/e1/label", `{"label": "Main"}`, http.StatusOK, ""},
		{"bad direction", http.MethodPatch, "/channels/ch-1/edges/e1/direction", `{"direction": "sideways"}`, http.StatusBadRequest, "invalid_input"},
		{"bad handle", http.MethodPatch, "/channels/ch-1/edges/e1/endpoints", `{"targetHandle": "in-top-9"}`, http.StatusConflict, "invalid"},
		{"malformed body", http.MethodPatch, "/channels/ch-1/edges/e1/endpoints", `{"target":`, http.StatusBadRequest, "invalid_body"},
		{"create node", http.MethodPost, "/channels/ch-1/nodes", `{"id": "sw", "type": "switch", "position": {"x": 900, "y": 0}}`, http.StatusOK, ""},
		{"create edge", http.MethodPost, "/channels/ch-1/edges", `{"id": "e2", "source": "rx", "target": "sw"}`, http.StatusOK, ""},
		{"duplicate edge", http.MethodPost, "/channels/ch-1/edges", `{"id": "e2", "source": "rx", "target": "sw"}`, http.StatusConflict, "duplicate_id"},
		{"delete edge", http.MethodDelete, "/channels/ch-1/edges/e2", ``, http.StatusOK, ""},
		{"delete node", http.MethodDelete, "/channels/ch-1/nodes/sw", ``, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			env := decode(t, w)
			assert.Equal(t, tt.status == http.StatusOK, env.OK)
			if tt.status == http.StatusOK {
				assert.NotEmpty(t, env.AuditID)
				return
			}
			assert.Equal(t, tt.status, env.Status)
			assert.Equal(t, tt.code, env.Code)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestReconnectEdge_ClearsHandleWithNull(t *testing.T) {
	h := newHandler(t)

	w := do(t, h, http.MethodPatch, "/channels/ch-1/edges/e1/endpoints", `{"target": "mon", "targetHandle": null}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decode(t, w)
	assert.Equal(t, "mon", env.Edge["target"])
	assert.Empty(t, env.Edge["targetHandle"])
}

func TestResyncRouterRoute(t *testing.T) {
	h := newHandler(t)

	w := do(t, h, http.MethodPost, "/channels/ch-1/nodes", `{"id": "core", "type": "router", "data": {"label": "Core"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodPut, "/channels/ch-1/nodes/core/template", `{"neighbors": ["mon"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		OK       bool             `json:"ok"`
		Node     map[string]any   `json:"node"`
		Edges    []map[string]any `json:"edges"`
		AuditIDs []string         `json:"auditIds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, "core", body.Node["id"])
	require.Len(t, body.Edges, 10)
	assert.Equal(t, "rt-core-ida-1", body.Edges[0]["id"])
	assert.Equal(t, "IDA Monitor", body.Edges[0]["label"])
	assert.Len(t, body.AuditIDs, 10)

	w = do(t, h, http.MethodPut, "/channels/ch-1/nodes/mon/template", `{"neighbors": ["sat"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPut, "/channels/ch-1/nodes/core/template", `{"neighbors": "mon"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_body", decode(t, w).Code)
}

func TestAuditRecordsActor(t *testing.T) {
	h := newHandler(t)

	w := do(t, h, http.MethodPatch, "/channels/ch-1/nodes/rx/label", `{"label": "IRD A"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/channels/ch-1/audit", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Records []struct {
			EntityID string `json:"entityId"`
			Action   string `json:"action"`
			Actor    string `json:"actor"`
		} `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Records, 2, "the auto-labelled edge is relabelled too")
	assert.Equal(t, "rx", body.Records[0].EntityID)
	assert.Equal(t, "e1", body.Records[1].EntityID)
	for _, rec := range body.Records {
		assert.Equal(t, "edit", rec.Action)
		assert.Equal(t, "op-1", rec.Actor)
	}
}

func TestDiagramReadback(t *testing.T) {
	h := newHandler(t)

	w := do(t, h, http.MethodGet, "/channels", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"channels":["ch-1"]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/channels/ch-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sig-1"`)
	assert.Contains(t, w.Body.String(), `"IDA IRD 1"`)

	w = do(t, h, http.MethodGet, "/channels/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveDiagram_Report(t *testing.T) {
	h := newHandler(t)

	w := do(t, h, http.MethodPut, "/channels/ch-2", `{"nodes": [{"id": "a"}, {"id": "a"}], "edges": [{"id": "x", "source": "a", "target": "zz"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		OK     bool `json:"ok"`
		Report struct {
			DuplicateNodes  int `json:"duplicateNodes"`
			UnresolvedEdges int `json:"unresolvedEdges"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, 1, body.Report.DuplicateNodes)
	assert.Equal(t, 1, body.Report.UnresolvedEdges)

	w = do(t, h, http.MethodPut, "/channels/ch-2", `[1, 2]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	eng := topograph.New(topograph.WithMetrics(observability.NewMetrics(reg)))
	h := httpadapter.NewHandler(eng, httpadapter.WithMetrics(reg))

	do(t, h, http.MethodPut, "/channels/ch-1", seed)

	w := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "topograph_store_tx_total")
}

func TestRateLimit(t *testing.T) {
	h := newHandler(t, httpadapter.WithRateLimit(2, time.Minute))

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, do(t, h, http.MethodPatch, "/channels/ch-1/nodes/rx/label", `{"label": "IRD A"}`).Code)
	}
	// The seeding PUT already consumed one token.
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/channels/ch-1", "").Code, "reads are not limited")
}

func TestCORS(t *testing.T) {
	h := httpadapter.NewHandler(topograph.New(), httpadapter.WithCORSOrigins("https://editor.example"))

	req := httptest.NewRequest(http.MethodOptions, "/channels/ch-1/nodes/a/position", nil)
	req.Header.Set("Origin", "https://editor.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", httpadapter.ActorHeader)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "https://editor.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
}

func TestSubscribeEvents(t *testing.T) {
	h := newHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/channels/ch-1/events?watch=edge", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				lines <- line
			}
		}
	}()

	next := func() string {
		select {
		case line := <-lines:
			return line
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
			return ""
		}
	}
	assert.Equal(t, "event: ping", next())
	assert.Equal(t, "data: connected", next())

	// Filtered out: a node event that touches no edge.
	w := do(t, h, http.MethodPatch, "/channels/ch-1/nodes/mon/position", `{"x": 5, "y": 5}`)
	require.Equal(t, http.StatusOK, w.Code)
	// Failed mutations are never broadcast.
	w = do(t, h, http.MethodPatch, "/channels/ch-1/edges/e1/direction", `{"direction": "sideways"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPatch, "/channels/ch-1/edges/e1/label", `{"label": "Main"}`)
	require.Equal(t, http.StatusOK, w.Code)

	line := next()
	require.True(t, strings.HasPrefix(line, "data: "), line)
	var ev struct {
		Type string         `json:"type"`
		Edge map[string]any `json:"edge"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
	assert.Equal(t, "mutation", ev.Type)
	assert.Equal(t, "Main", ev.Edge["label"])

	// Deleting rx removes e1 with it; edge watchers must hear about that.
	w = do(t, h, http.MethodDelete, "/channels/ch-1/nodes/rx", "")
	require.Equal(t, http.StatusOK, w.Code)

	line = next()
	require.True(t, strings.HasPrefix(line, "data: "), line)
	var cascade struct {
		Node  map[string]any   `json:"node"`
		Edges []map[string]any `json:"edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &cascade))
	assert.Equal(t, "rx", cascade.Node["id"])
	require.Len(t, cascade.Edges, 1)
	assert.Equal(t, "e1", cascade.Edges[0]["id"])
}

func TestStreamManager_Unsubscribe(t *testing.T) {
	sm := httpadapter.NewStreamManager()
	ch, cancel := sm.Subscribe("ch-1")

	sm.Broadcast("ch-1", "one")
	sm.Broadcast("ch-2", "other")
	assert.Equal(t, "one", <-ch)

	cancel()
	_, open := <-ch
	assert.False(t, open)
	sm.Broadcast("ch-1", "after")
}
