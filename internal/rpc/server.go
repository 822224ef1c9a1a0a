package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	gorilla "github.com/gorilla/websocket"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/services/system"
	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/pkg/jsonrpc"
	"hongeet.dev/backend/pkg/websocket"
)

// Options configures the WebSocket transport.
type Options struct {
	// MaxMessageSize is the maximum inbound message size in bytes.
	MaxMessageSize int64

	// WriteWait is the time allowed to write a message to the peer.
	WriteWait time.Duration

	// PongWait is the time allowed to read the next pong message from the peer.
	PongWait time.Duration

	// PingPeriod must be less than PongWait.
	PingPeriod time.Duration

	// AllowedOrigins restricts WebSocket upgrades by Origin header.
	AllowedOrigins []string
}

func (o *Options) withDefaults() {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
}

// Server serves the JSON-RPC methods over HTTP POST and WebSocket.
type Server struct {
	rpc      *jsonrpc.Server
	hub      *Hub
	upgrader *gorilla.Upgrader
	opts     Options
	metrics  *system.MetricsService
	logger   *utils.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server exposing methods.
func NewServer(methods *Methods, opts Options, metrics *system.MetricsService, logger *utils.Logger) *Server {
	opts.withDefaults()
	logger = logger.Named("rpc")

	s := &Server{
		rpc: jsonrpc.NewServer(
			jsonrpc.WithErrorMapper(ToError),
			jsonrpc.WithMaxBodyBytes(opts.MaxMessageSize),
		),
		hub:      NewHub(logger),
		upgrader: websocket.NewUpgrader(opts.AllowedOrigins),
		opts:     opts,
		metrics:  metrics,
		logger:   logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.rpc.Use(s.logCalls)
	methods.Register(s.rpc)
	return s
}

// Methods returns the registered method names.
func (s *Server) Methods() []string {
	return s.rpc.Methods()
}

// Hub returns the connection registry.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ServeHTTP handles JSON-RPC over HTTP POST.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.rpc.ServeHTTP(w, r)
}

// ServeWS upgrades the request and serves JSON-RPC on the connection until it closes.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written an error response
		s.logger.Debug("WebSocket upgrade failed", "error", err.Error())
		return
	}

	client := newClient(s, websocket.NewConnection(conn), s.logger)
	s.hub.register(client)
	s.metrics.AddWSConnections(1)
	s.logger.Debug("Client connected", "clientId", client.ID, "remoteAddr", client.conn.RemoteAddr())

	go client.writePump()
	client.readPump(s.ctx)
}

// PublishDownload sends a progress notification to the connections that
// started the download. Subscriptions end once the task is terminal.
func (s *Server) PublishDownload(task models.DownloadTask) {
	s.hub.Publish(task.ID, EventDownloadProgress, task)
	if task.Status.Terminal() {
		s.hub.Drop(task.ID)
	}
}

// Close disconnects all WebSocket clients and refuses new ones.
func (s *Server) Close() {
	s.cancel()
	s.hub.closeAll()
}

func (s *Server) logCalls(next jsonrpc.Handler) jsonrpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		start := time.Now()
		result, err := next(ctx, params)
		method := jsonrpc.MethodFromContext(ctx)
		if err != nil {
			s.logger.Debug("RPC call failed", "method", method, "kind", models.KindOf(err), "error", err.Error(), "duration", time.Since(start))
		} else {
			s.logger.Debug("RPC call", "method", method, "duration", time.Since(start))
		}
		return result, err
	}
}
