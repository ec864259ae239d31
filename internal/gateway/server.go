package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/attendant/internal/channel"
	"github.com/soyeahso/attendant/internal/config"
	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/hooks"
	"github.com/soyeahso/attendant/internal/logging"
	"github.com/soyeahso/attendant/internal/metrics"
	"github.com/soyeahso/attendant/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

// hookName identifies the gateway's hook subscriptions.
const hookName = "gateway"

// SessionSource is the read side of the session store.
type SessionSource interface {
	Get(ctx context.Context, id string) (*domain.Session, bool, error)
	List(ctx context.Context) ([]domain.Session, error)
}

// ReportSource exposes the completion log.
type ReportSource interface {
	Path() string
	Records() ([]domain.CompletionRecord, error)
	Find(code string) (*domain.CompletionRecord, bool, error)
}

// ActivitySource reports correspondents with in-flight work.
type ActivitySource interface {
	Active() []string
}

// Server is the administrative HTTP + WebSocket server. Nothing it exposes
// mutates session state.
type Server struct {
	cfg      config.Config
	auth     ResolvedAuth
	log      *logging.Logger
	clients  *operators
	handlers map[string]RequestHandler
	version  string
	eventSeq atomic.Int64

	sessions SessionSource
	reports  ReportSource
	channels *channel.Registry
	hooks    *hooks.Manager
	metrics  *metrics.Metrics
	activity ActivitySource
	mounts   map[string]http.Handler

	mu          sync.Mutex
	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// authRateLimiter tracks failed auth attempts per IP to prevent brute-force attacks.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000 // max tracked IPs to prevent memory exhaustion
)

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{failures: make(map[string][]time.Time)}
}

// sweep drops failures older than the window every minute until ctx ends.
func (l *authRateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		l.mu.Lock()
		cutoff := time.Now().Add(-authRateWindow)
		for ip, times := range l.failures {
			if kept := recentSince(times, cutoff); len(kept) == 0 {
				delete(l.failures, ip)
			} else {
				l.failures[ip] = kept
			}
		}
		l.mu.Unlock()
	}
}

func recentSince(times []time.Time, cutoff time.Time) []time.Time {
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func hostOf(remoteAddr string) string {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		return remoteAddr
	}
	return host
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	host := hostOf(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := recentSince(l.failures[host], time.Now().Add(-authRateWindow))
	if len(kept) == 0 {
		delete(l.failures, host)
		return true
	}
	l.failures[host] = kept
	return len(kept) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := hostOf(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.failures[host]; !exists && len(l.failures) >= authRateMaxIPs {
		var oldestIP string
		var oldestTime time.Time
		for ip, times := range l.failures {
			if len(times) > 0 && (oldestIP == "" || times[0].Before(oldestTime)) {
				oldestIP = ip
				oldestTime = times[0]
			}
		}
		if oldestIP != "" {
			delete(l.failures, oldestIP)
		}
	}

	l.failures[host] = append(l.failures[host], time.Now())
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithSessions exposes session snapshots.
func WithSessions(src SessionSource) ServerOption {
	return func(s *Server) {
		s.sessions = src
	}
}

// WithReports exposes the completion log.
func WithReports(src ReportSource) ServerOption {
	return func(s *Server) {
		s.reports = src
	}
}

// WithChannels sets the channel registry for channel status reporting.
func WithChannels(ch *channel.Registry) ServerOption {
	return func(s *Server) {
		s.channels = ch
	}
}

// WithHooks sets the hook manager. Completed sessions are pushed to
// connected operators as session.completed events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithMetrics serves the collectors at the configured metrics path.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithActivity reports in-flight correspondents in the health RPC.
func WithActivity(a ActivitySource) ServerOption {
	return func(s *Server) {
		s.activity = a
	}
}

// WithMount serves h at path without operator auth. Used for the
// correspondent-facing webchat socket.
func WithMount(path string, h http.Handler) ServerOption {
	return func(s *Server) {
		s.mounts[path] = h
	}
}

// New creates a new gateway server.
func New(cfg config.Config, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Gateway.Auth),
		log:         log.Sub("gateway"),
		clients:     newOperators(log.Sub("operators")),
		handlers:    make(map[string]RequestHandler),
		version:     version.Version,
		mounts:      make(map[string]http.Handler),
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(cfg.Gateway.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	if s.hooks != nil {
		s.hooks.On(hooks.EventSessionEnd, hookName, hooks.Handle(s.onSessionEnd))
		s.hooks.On(hooks.EventHandoff, hookName, hooks.Handle(s.onHandoff))
	}
	return s
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names, sorted.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the routes behind the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return chain(mux, s.accessLog, s.recoverPanics, requestID, cors(s.cfg.Gateway.AllowedOrigins))
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.Gateway.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.Gateway.TLS.CertPath, s.cfg.Gateway.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Gateway.Bind != "loopback" {
		s.log.Warn().Msg("TLS is not enabled, credentials travel in cleartext")
	}

	srv := &http.Server{
		Addr:        ln.Addr().String(),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.httpServer = srv
	s.startedAt = time.Now()
	s.mu.Unlock()

	go s.authLimiter.sweep(ctx)

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.GatewayStarted{Addr: ln.Addr().String()})
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Str("auth", s.auth.Mode).
		Int("methods", len(s.handlers)).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		if s.hooks != nil {
			s.hooks.Off(hooks.EventSessionEnd, hookName)
			s.hooks.Off(hooks.EventHandoff, hookName)
			s.hooks.Emit(context.Background(), hooks.GatewayStopped{})
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.closeAll()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

func (s *Server) uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// onSessionEnd relays a completion to every connected operator.
func (s *Server) onSessionEnd(_ context.Context, ev hooks.SessionEnded) error {
	s.clients.broadcast(EventSessionCompleted, Completed{
		TicketCode:    ev.Record.TicketCode,
		Status:        ev.Record.Status,
		Correspondent: ev.Record.CorrespondentID,
	}, s.eventSeq.Add(1))
	return nil
}

// onHandoff tells operators a correspondent is waiting for a human agent.
func (s *Server) onHandoff(_ context.Context, ev hooks.HandoffRequested) error {
	n := s.clients.broadcast(EventSessionHandoff, HandoffNotice{
		Session:     ev.Session,
		Name:        ev.Name,
		ResumeState: ev.ResumeState,
	}, s.eventSeq.Add(1))
	if n == 0 {
		s.log.Warn().Str("session", ev.Session).Msg("handoff requested with no operator connected")
	}
	return nil
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited, too many failed auth attempts")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn.SetReadLimit(maxPayload)

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("new websocket connection")

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("handshake failed")
		s.authLimiter.recordFailure(r.RemoteAddr)
		conn.Close()
		return
	}

	s.clients.add(client)
	defer func() {
		s.clients.remove(client)
		client.Close()
	}()

	s.readLoop(r.Context(), client)
}

const maxPayload = 1 << 20

// handshake runs challenge, connect and hello on a fresh socket. The
// operator has ten seconds to send a valid connect request.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	challenge, err := eventFrame(EventChallenge, map[string]any{
		"nonce": uuid.New().String(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		return nil, fmt.Errorf("reading connect: %w", err)
	}
	if frame.Type != KindRequest || frame.Method != "connect" {
		return nil, reject(conn, frame.ID, rpcErrorf(CodeProtocol, "expected connect request, got %s %s", frame.Type, frame.Method))
	}

	var params ConnectParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		return nil, reject(conn, frame.ID, rpcErrorf(CodeInvalidParams, "invalid connect params"))
	}
	if params.Protocol != ProtocolVersion {
		return nil, reject(conn, frame.ID, rpcErrorf(CodeProtocolMismatch, "server speaks protocol %d, client asked for %d", ProtocolVersion, params.Protocol))
	}

	res := Authorize(s.auth, params.Auth)
	if !res.OK {
		return nil, reject(conn, frame.ID, rpcErrorf(CodeUnauthorized, "%s", res.Reason))
	}

	conn.SetReadDeadline(time.Time{})
	client := newClient(conn, params.Operator, res)

	hello, err := okResponse(frame.ID, Hello{
		Protocol:   ProtocolVersion,
		Version:    s.version,
		Commit:     version.Commit,
		ConnID:     client.ConnID,
		Methods:    s.Methods(),
		Events:     pushedEvents,
		MaxPayload: maxPayload,
	})
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(hello); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("operator", client.Operator).
		Str("authMethod", res.Method).
		Msg("operator authenticated")
	return client, nil
}

// readLoop serves requests from an authenticated operator until the socket
// closes.
func (s *Server) readLoop(ctx context.Context, client *Client) {
	for {
		frame, bad, err := client.next()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("operator closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("operator read failed")
			}
			return
		}
		if bad != nil {
			client.fail("", bad)
			continue
		}
		if frame.Type != KindRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}
		s.dispatch(ctx, client, frame)
	}
}

// dispatch runs the handler registered for the frame's method.
func (s *Server) dispatch(ctx context.Context, client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.fail(frame.ID, rpcErrorf(CodeMethodNotFound, "unknown method %q", frame.Method))
		return
	}
	handler(&RequestContext{
		Ctx:    ctx,
		Client: client,
		Frame:  frame,
		Server: s,
	})
}

// reject answers the connect request with e, closes the socket politely
// and returns e.
func reject(conn *websocket.Conn, reqID string, e *RPCError) error {
	conn.WriteJSON(errorResponse(reqID, e))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(e.Code)))
	return e
}
