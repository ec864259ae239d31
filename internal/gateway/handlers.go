package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/soyeahso/attendant/internal/domain"
)

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the authenticated RPC handler populates all fields.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Clients  int    `json:"clients,omitempty"`
	Active   int    `json:"active,omitempty"`
	UptimeMs int64  `json:"uptimeMs,omitempty"`

	Build map[string]string `json:"build,omitempty"`
}

// SessionSummary is the list view of a session.
type SessionSummary struct {
	ID         string       `json:"id"`
	State      domain.State `json:"state"`
	Name       string       `json:"name,omitempty"`
	TicketCode string       `json:"ticketCode,omitempty"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

func summarize(list []domain.Session) []SessionSummary {
	out := make([]SessionSummary, 0, len(list))
	for _, sess := range list {
		out = append(out, SessionSummary{
			ID:         sess.ID,
			State:      sess.State,
			Name:       sess.Fields.Name,
			TicketCode: sess.Fields.TicketCode,
			UpdatedAt:  sess.UpdatedAt,
		})
	}
	return out
}

// handleHealth returns the server health status. Only status is exposed
// publicly; detailed info is available via the authenticated RPC health method.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeJSON(w, http.StatusOK, map[string]any{"sessions": []SessionSummary{}, "count": 0})
		return
	}
	list, err := s.sessions.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("listing sessions")
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": summarize(list), "count": len(list)})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	sess, ok, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("session", id).Msg("reading session")
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleReportFile streams the completion log as a CSV download.
func (s *Server) handleReportFile(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusNotFound, "no completion log")
		return
	}
	f, err := os.Open(s.reports.Path())
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "no completion log")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("opening completion log")
		writeError(w, http.StatusInternalServerError, "report error")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(s.reports.Path())+`"`)
	if _, err := io.Copy(w, f); err != nil {
		s.log.Warn().Err(err).Msg("streaming completion log")
	}
}

func (s *Server) handleReportRecords(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeJSON(w, http.StatusOK, map[string]any{"records": []domain.CompletionRecord{}})
		return
	}
	code := r.URL.Query().Get("code")
	records, err := s.records(code)
	if err != nil {
		s.log.Error().Err(err).Msg("reading completion log")
		writeError(w, http.StatusInternalServerError, "report error")
		return
	}
	if code != "" && len(records) == 0 {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// records returns every logged completion, or only the latest match for code.
func (s *Server) records(code string) ([]domain.CompletionRecord, error) {
	if code == "" {
		records, err := s.reports.Records()
		if records == nil {
			records = []domain.CompletionRecord{}
		}
		return records, err
	}
	rec, ok, err := s.reports.Find(code)
	if err != nil || !ok {
		return []domain.CompletionRecord{}, err
	}
	return []domain.CompletionRecord{*rec}, nil
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if s.channels == nil {
		writeJSON(w, http.StatusOK, map[string]any{"channels": []domain.ChannelStatus{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": s.channels.Status()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(ctx *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.reply(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// Fail sends an error response. Retryable failures are logged since they
// point at a problem on this side.
func (rc *RequestContext) Fail(code Code, format string, args ...any) {
	e := rpcErrorf(code, format, args...)
	if code.Retryable() {
		rc.Server.log.Warn().Str("method", rc.Frame.Method).Str("code", string(code)).Msg(e.Message)
	}
	if err := rc.Client.fail(rc.Frame.ID, e); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send error response")
	}
}

// Params decodes the request params into target. Absent params leave
// target untouched.
func (rc *RequestContext) Params(target any) error {
	if len(rc.Frame.Params) == 0 || string(rc.Frame.Params) == "null" {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}
