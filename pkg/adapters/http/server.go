// Package http exposes the diagram mutation API over REST.
//
// Every mutation responds with the upward envelope {ok, node|edge, auditId}
// or {ok:false, status, message}; the HTTP status mirrors the envelope status.
// Successful mutations are also broadcast to server-sent event subscribers of
// the channel.
package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/topograph"
	"github.com/aretw0/topograph/internal/logging"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/observability"
)

// ActorHeader carries the identity recorded in audit records.
const ActorHeader = "X-Actor-Id"

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 4 << 20

// Engine is the mutation surface served over HTTP. *topograph.Engine implements it.
type Engine interface {
	UpdateNodePosition(ctx context.Context, channelID, nodeID string, position any) (*topograph.NodeResult, error)
	UpdateNodeLabel(ctx context.Context, channelID, nodeID, label string) (*topograph.NodeResult, error)
	CreateNode(ctx context.Context, channelID string, raw any) (*topograph.NodeResult, error)
	DeleteNode(ctx context.Context, channelID, nodeID string) (*topograph.NodeResult, error)
	ReconnectEdge(ctx context.Context, channelID, edgeID string, patch topograph.EdgePatch) (*topograph.EdgeResult, error)
	UpdateEdgeTooltip(ctx context.Context, channelID, edgeID string, patch topograph.TooltipPatch) (*topograph.EdgeResult, error)
	UpdateEdgeLabel(ctx context.Context, channelID, edgeID, label string) (*topograph.EdgeResult, error)
	UpdateEdgeDirection(ctx context.Context, channelID, edgeID, direction string) (*topograph.EdgeResult, error)
	CreateEdge(ctx context.Context, channelID string, raw any) (*topograph.EdgeResult, error)
	DeleteEdge(ctx context.Context, channelID, edgeID string) (*topograph.EdgeResult, error)
	ResyncRouter(ctx context.Context, channelID, routerID string, neighborIDs []string) (*topograph.RouterResult, error)
	SaveDiagram(ctx context.Context, channelID string, raw any) (*topograph.DiagramResult, error)
	LoadDiagram(ctx context.Context, channelID string) (*domain.Channel, error)
	History(ctx context.Context, channelID string) ([]domain.AuditRecord, error)
	Channels(ctx context.Context) ([]string, error)
}

var _ Engine = (*topograph.Engine)(nil)

// Server routes requests to an Engine.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger     *slog.Logger
	gatherer   prometheus.Gatherer
	metricsAt  string
	origins    []string
	rateLimit  int
	rateWindow time.Duration
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics serves g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMetricsPath moves the metrics endpoint.
func WithMetricsPath(path string) Option {
	return func(s *Server) {
		s.metricsAt = path
	}
}

// WithCORSOrigins sets the allowed browser origins. Defaults to any origin.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithRateLimit limits mutating requests per client IP. Zero disables it.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimit, s.rateWindow = requests, window
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:    engine,
		Streams:   NewStreamManager(),
		logger:    logging.NewNop(),
		origins:   []string{"*"},
		metricsAt: "/metrics",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", ActorHeader},
		MaxAge:         300,
	}))
	r.Use(withActor)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle(s.metricsAt, observability.Handler(s.gatherer))
	}

	r.Route("/channels", func(r chi.Router) {
		r.Get("/", s.ListChannels)
		r.Route("/{channelID}", func(r chi.Router) {
			r.Get("/", s.GetDiagram)
			r.Get("/audit", s.GetAudit)
			r.Get("/events", s.SubscribeEvents)

			r.Group(func(r chi.Router) {
				if s.rateLimit > 0 {
					r.Use(httprate.LimitByIP(s.rateLimit, s.rateWindow))
				}
				r.Put("/", s.SaveDiagram)
				r.Post("/nodes", s.CreateNode)
				r.Patch("/nodes/{nodeID}/position", s.UpdateNodePosition)
				r.Patch("/nodes/{nodeID}/label", s.UpdateNodeLabel)
				r.Delete("/nodes/{nodeID}", s.DeleteNode)
				r.Put("/nodes/{nodeID}/template", s.ResyncRouter)
				r.Post("/edges", s.CreateEdge)
				r.Patch("/edges/{edgeID}/endpoints", s.ReconnectEdge)
				r.Patch("/edges/{edgeID}/tooltip", s.UpdateEdgeTooltip)
				r.Patch("/edges/{edgeID}/label", s.UpdateEdgeLabel)
				r.Patch("/edges/{edgeID}/direction", s.UpdateEdgeDirection)
				r.Delete("/edges/{edgeID}", s.DeleteEdge)
			})
		})
	})
	return r
}

func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
			r = r.WithContext(domain.WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "topograph-http",
		"version": strings.TrimSpace(topograph.Version),
	})
}

// ListChannels handles GET /channels.
func (s *Server) ListChannels(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Channels(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"channels": ids})
}

// GetDiagram handles GET /channels/{channelID}.
func (s *Server) GetDiagram(w http.ResponseWriter, r *http.Request) {
	ch, err := s.Engine.LoadDiagram(r.Context(), chi.URLParam(r, "channelID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ch)
}

// GetAudit handles GET /channels/{channelID}/audit.
func (s *Server) GetAudit(w http.ResponseWriter, r *http.Request) {
	records, err := s.Engine.History(r.Context(), chi.URLParam(r, "channelID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]domain.AuditRecord{"records": records})
}

// SaveDiagram handles PUT /channels/{channelID}.
func (s *Server) SaveDiagram(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !s.decode(w, r, &body) {
		return
	}
	channelID := chi.URLParam(r, "channelID")
	res, err := s.Engine.SaveDiagram(r.Context(), channelID, body)
	if err != nil {
		s.respond(w, channelID, topograph.Outcome(res, err))
		return
	}
	out := topograph.Outcome(res, nil)
	s.Streams.Broadcast(channelID, s.event("diagram_saved", out))
	s.writeJSON(w, http.StatusOK, struct {
		topograph.Result
		Report any `json:"report"`
	}{out, res.Report})
}

// CreateNode handles POST /channels/{channelID}/nodes.
func (s *Server) CreateNode(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !s.decode(w, r, &body) {
		return
	}
	channelID := chi.URLParam(r, "channelID")
	s.respond(w, channelID, topograph.Outcome(s.Engine.CreateNode(r.Context(), channelID, body)))
}

// UpdateNodePosition handles PATCH /channels/{channelID}/nodes/{nodeID}/position.
// The body is either {"position": {"x", "y"}} or the bare {"x", "y"} object.
func (s *Server) UpdateNodePosition(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !s.decode(w, r, &body) {
		return
	}
	var position any = body
	if p, ok := body["position"]; ok {
		position = p
	}
	channelID := chi.URLParam(r, "channelID")
	s.respond(w, channelID, topograph.Outcome(
		s.Engine.UpdateNodePosition(r.Context(), channelID, chi.URLParam(r, "nodeID"), position)))
}

type labelBody struct {
	Label string `json:"label"`
}

// UpdateNodeLabel handles PATCH /channels/{channelID}/nodes/{nodeID}/label.
func (s *Server) UpdateNodeLabel(w http.ResponseWriter, r *http.Request) {
	var body labelBody
	if !s.decode(w, r, &body) {
		return
	}
	channelID := chi.URLParam(r, "channelID")
	s.respond(w, channelID, topograph.Outcome(
		s.Engine.UpdateNodeLabel(r.Context(), channelID, chi.URLParam(r, "nodeID"), body.Label)))
}

// DeleteNode handles DELETE /channels/{channelID}/nodes/{nodeID}.
func (s *Server) DeleteNode(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	s.respond(w, channelID, topograph.Outcome(
		s.Engine.DeleteNode(r.Context(), channelID, chi.URLParam(r, "nodeID"))))
}

// ResyncRouter handles PUT /channels/{channelID}/nodes/{nodeID}/template.
// The body lists the router's neighbors: {"neighbors": ["a", "b"]}.
func (s *Server) ResyncRouter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Neighbors []string `json:"neighbors"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	channelID := chi.URLParam(r, "channelID")
	s.respond(w, channelID, topograph.Outcome(
		s.Engine.ResyncRouter(r.Context(), channelID, chi.URLParam(r, "nodeID"), body.Neighbors)))
}

// CreateEdge handles POST /channels/{channelID}/edges.
func (s *Server) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !s.decode(w, r, &body) {
		return
	}
	channelID := chi.URLParam(r, "channelID")
	s.respond(w, channelID, topograph.Outcome(s.Engine.CreateEdge(r.Context(), channelID, body)))
}

// ReconnectEdge handles PATCH /channels/{channelID}/edges/{edgeID}/endpoints.
func (s *Server) ReconnectEdge(w http.ResponseWriter, r *http.Request) {
	var patch topograph.EdgePatch
	if !s.decode(w, r, &patch) {
		return
	}
	channelID := chi.URLParam(r, "channelID")
	s.respond(w, channelID, topograph.Outcome(
		s.Engine.ReconnectEdge(r.Context(), channelID, chi.URLParam(r, "edgeID"), patch)))
}

// UpdateEdgeTooltip handles PATCH /channels/{channelID}/edges/{edgeID}/tooltip.
func (s *Server) UpdateEdgeTooltip(w http.ResponseWriter, r *http.Request) {
	var patch topograph.TooltipPatch
	if !s.decode(w, r, &patch) {
		return
	}
	channelID := chi.URLParam(r, "channelID")
	s.respond(w, channelID, topograph.Outcome(
		s.Engine.UpdateEdgeTooltip(r.Context(), channelID, chi.URLParam(r, "edgeID"), patch)))
}

// UpdateEdgeLabel handles PATCH /channels/{channelID}/edges/{edgeID}/label.
func (s *Server) UpdateEdgeLabel(w http.ResponseWriter, r *http.Request) {
	var body labelBody
	if !s.decode(w, r, &body) {
		return
	}
	channelID := chi.URLParam(r, "channelID")
	s.respond(w, channelID, topograph.Outcome(
		s.Engine.UpdateEdgeLabel(r.Context(), channelID, chi.URLParam(r, "edgeID"), body.Label)))
}

// UpdateEdgeDirection handles PATCH /channels/{channelID}/edges/{edgeID}/direction.
func (s *Server) UpdateEdgeDirection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction string `json:"direction"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	channelID := chi.URLParam(r, "channelID")
	s.respond(w, channelID, topograph.Outcome(
		s.Engine.UpdateEdgeDirection(r.Context(), channelID, chi.URLParam(r, "edgeID"), body.Direction)))
}

// DeleteEdge handles DELETE /channels/{channelID}/edges/{edgeID}.
func (s *Server) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	s.respond(w, channelID, topograph.Outcome(
		s.Engine.DeleteEdge(r.Context(), channelID, chi.URLParam(r, "edgeID"))))
}

// decode reads a JSON body into v. A malformed body is answered with a 400
// envelope and reports false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err == nil {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		s.writeJSON(w, http.StatusBadRequest, topograph.Result{
			Status:  http.StatusBadRequest,
			Code:    "invalid_body",
			Message: "request body must be a JSON object",
		})
		return false
	}
	return true
}

// respond writes a mutation envelope and broadcasts successful ones.
func (s *Server) respond(w http.ResponseWriter, channelID string, out topograph.Result) {
	if !out.OK {
		if out.Status >= http.StatusInternalServerError {
			s.logger.Error("Mutation failed", "channel_id", channelID, "code", out.Code)
		}
		s.writeJSON(w, out.Status, out)
		return
	}
	s.Streams.Broadcast(channelID, s.event("mutation", out))
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	out := topograph.Outcome(nil, err)
	s.writeJSON(w, out.Status, out)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) event(kind string, out topograph.Result) string {
	b, err := json.Marshal(struct {
		Type string `json:"type"`
		topograph.Result
	}{kind, out})
	if err != nil {
		s.logger.Warn("Event encode failed", "err", err)
		return ""
	}
	return string(b)
}
