package gateway

import (
	"net/http"

	"github.com/soyeahso/attendant/internal/version"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.Handle("GET /admin/sessions", s.requireAuth(http.HandlerFunc(s.handleSessions)))
	mux.Handle("GET /admin/sessions/{id}", s.requireAuth(http.HandlerFunc(s.handleSession)))
	mux.Handle("GET /admin/reports", s.requireAuth(http.HandlerFunc(s.handleReportFile)))
	mux.Handle("GET /admin/reports/records", s.requireAuth(http.HandlerFunc(s.handleReportRecords)))
	mux.Handle("GET /admin/channels", s.requireAuth(http.HandlerFunc(s.handleChannels)))

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		mux.Handle("GET "+s.cfg.Metrics.Path, s.requireAuth(s.metrics.Handler()))
	}

	for path, h := range s.mounts {
		mux.Handle(path, h)
	}

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all JSON-RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("sessions.list", s.rpcSessionsList)
	s.Handle("sessions.get", s.rpcSessionsGet)
	s.Handle("channels.status", s.rpcChannelsStatus)
	s.Handle("reports.list", s.rpcReportsList)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	resp := HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Clients:  s.clients.count(),
		UptimeMs: s.uptime().Milliseconds(),
		Build:    version.Fields(),
	}
	if s.activity != nil {
		resp.Active = len(s.activity.Active())
	}
	rc.Respond(resp)
}

func (s *Server) rpcSessionsList(rc *RequestContext) {
	if s.sessions == nil {
		rc.Respond(map[string]any{"sessions": []any{}})
		return
	}
	list, err := s.sessions.List(rc.Ctx)
	if err != nil {
		rc.Fail(CodeStoreUnavailable, "listing sessions: %v", err)
		return
	}
	rc.Respond(map[string]any{"sessions": summarize(list)})
}

type sessionsGetParams struct {
	ID string `json:"id"`
}

func (s *Server) rpcSessionsGet(rc *RequestContext) {
	var p sessionsGetParams
	if err := rc.Params(&p); err != nil {
		rc.Fail(CodeInvalidParams, "%v", err)
		return
	}
	if p.ID == "" {
		rc.Fail(CodeInvalidParams, "id is required")
		return
	}
	if s.sessions == nil {
		rc.Fail(CodeSessionNotFound, "no session %q", p.ID)
		return
	}
	sess, ok, err := s.sessions.Get(rc.Ctx, p.ID)
	if err != nil {
		rc.Fail(CodeStoreUnavailable, "reading session %q: %v", p.ID, err)
		return
	}
	if !ok {
		rc.Fail(CodeSessionNotFound, "no session %q", p.ID)
		return
	}
	rc.Respond(sess)
}

func (s *Server) rpcChannelsStatus(rc *RequestContext) {
	if s.channels != nil {
		rc.Respond(map[string]any{"channels": s.channels.Status()})
		return
	}
	rc.Respond(map[string]any{"channels": []any{}})
}

type reportsListParams struct {
	Code string `json:"code,omitempty"`
}

func (s *Server) rpcReportsList(rc *RequestContext) {
	var p reportsListParams
	if err := rc.Params(&p); err != nil {
		rc.Fail(CodeInvalidParams, "%v", err)
		return
	}
	if s.reports == nil {
		if p.Code != "" {
			rc.Fail(CodeTicketNotFound, "no ticket %q", p.Code)
			return
		}
		rc.Respond(map[string]any{"records": []any{}})
		return
	}
	records, err := s.records(p.Code)
	if err != nil {
		rc.Fail(CodeReportUnavailable, "reading completion log: %v", err)
		return
	}
	if p.Code != "" && len(records) == 0 {
		rc.Fail(CodeTicketNotFound, "no ticket %q", p.Code)
		return
	}
	rc.Respond(map[string]any{"records": records})
}
