package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/statushub/internal/hub"
	"github.com/loykin/statushub/internal/metrics"
	"github.com/loykin/statushub/internal/status"
	"github.com/loykin/statushub/internal/store"
)

// Router provides the read-only catalog query surface.
// Endpoints:
//
//	GET {basePath}/sources/history   query: object=, status=, after=, limit=
//	GET {basePath}/sinks/history     same parameters
//	GET {basePath}/sources/current   query: object= (optional)
//	GET {basePath}/sinks/current     same parameters
//	GET {basePath}/objects           query: kind= (optional)
//	GET /metrics                     Prometheus exposition
//
// History rows are ordered ascending by occurred_at. Queries for
// unknown or purged objects return empty results, not errors.
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	hub      *hub.Hub
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(h *hub.Hub, basePath string) *Router {
	return &Router{hub: h, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/sources/history", r.handleHistory(status.ObjectSource))
	group.GET("/sinks/history", r.handleHistory(status.ObjectSink))
	group.GET("/sources/current", r.handleCurrent(status.ObjectSource))
	group.GET("/sinks/current", r.handleCurrent(status.ObjectSink))
	group.GET("/objects", r.handleObjects)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, h *hub.Hub) (*http.Server, error) {
	r := NewRouter(h, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

func parseFilter(c *gin.Context) (store.Filter, bool) {
	var f store.Filter
	if s := c.Query("status"); s != "" {
		f.Status = status.Kind(s)
	}
	if a := c.Query("after"); a != "" {
		v, err := strconv.ParseInt(a, 10, 64)
		if err != nil || v < 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid after: must be a non-negative integer"})
			return f, false
		}
		f.AfterPos = v
	}
	if l := c.Query("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid limit: must be a non-negative integer"})
			return f, false
		}
		f.Limit = v
	}
	return f, true
}

func (r *Router) handleHistory(kind status.ObjectKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, ok := parseFilter(c)
		if !ok {
			return
		}
		name := c.Query("object")
		if name == "" {
			rows, err := r.hub.Relation(c.Request.Context(), kind, f)
			if err != nil {
				writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
				return
			}
			writeJSON(c, http.StatusOK, rows)
			return
		}
		obj, found := r.hub.Resolve(name)
		if !found || obj.Kind != kind {
			// unknown object reads are empty, not errors
			writeJSON(c, http.StatusOK, []hub.Row{})
			return
		}
		entries, err := r.hub.History(c.Request.Context(), obj.ID, f)
		if err != nil {
			writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
			return
		}
		rows := make([]hub.Row, 0, len(entries))
		for _, en := range entries {
			rows = append(rows, hub.RowFromEntry(en))
		}
		writeJSON(c, http.StatusOK, rows)
	}
}

func (r *Router) handleCurrent(kind status.ObjectKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("object")
		if name == "" {
			writeJSON(c, http.StatusOK, r.hub.CurrentRelation(kind))
			return
		}
		obj, found := r.hub.Resolve(name)
		if !found || obj.Kind != kind {
			writeJSON(c, http.StatusOK, []hub.Row{})
			return
		}
		if en := r.hub.Current(obj.ID); en != nil {
			writeJSON(c, http.StatusOK, []hub.Row{hub.RowFromEntry(*en)})
			return
		}
		writeJSON(c, http.StatusOK, []hub.Row{})
	}
}

func (r *Router) handleObjects(c *gin.Context) {
	kind := status.ObjectKind(c.Query("kind"))
	switch kind {
	case "", status.ObjectSource, status.ObjectSink:
	default:
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid kind: want source or sink"})
		return
	}
	writeJSON(c, http.StatusOK, r.hub.Objects(kind))
}
