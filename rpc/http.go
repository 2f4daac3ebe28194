package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"contractorium/core"
	"contractorium/observability"
	"contractorium/observability/logging"
)

const (
	jsonRPCVersion         = "2.0"
	defaultMaxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

// ServerConfig tunes transport limits and write authentication.
type ServerConfig struct {
	MaxBodyBytes       int64
	RateLimitPerSecond float64
	RateLimitBurst     int
	// JWTSecret enables bearer authentication of bounty_sendTransaction.
	JWTSecret   string
	JWTIssuer   string
	JWTAudience []string
}

// Server exposes the node over JSON-RPC 2.0 and a websocket event stream.
type Server struct {
	node    *core.Node
	cfg     ServerConfig
	logger  *slog.Logger
	limiter *rateLimiter
	auth    *authenticator
}

// NewServer wires a JSON-RPC server around node.
func NewServer(node *core.Node, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxRequestBytes
	}
	return &Server{
		node:    node,
		cfg:     cfg,
		logger:  logger.With("component", "rpc"),
		limiter: newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		auth:    newAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
	}
}

// Router returns the HTTP handler serving every endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.With(s.limiter.middleware).Post("/", s.handle)
	return otelhttp.NewHandler(r, "contractorium-rpc")
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"height": s.node.Height(),
	})
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	start := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.dispatch(recorder, r, req)
	status := 0
	if recorder.status >= http.StatusBadRequest {
		status = recorder.status
	}
	observability.ModuleMetrics().Observe("rpc", req.Method, status, time.Since(start))
	s.logger.DebugContext(r.Context(), "rpc request",
		"method", req.Method,
		"requestId", requestIDFrom(r.Context()),
		"status", recorder.status,
		"durationMs", time.Since(start).Milliseconds())
}

func (s *Server) dispatch(w *statusRecorder, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "bounty_sendTransaction":
		if authErr := s.auth.check(r); authErr != nil {
			observability.ModuleMetrics().RecordThrottle("rpc", "unauthorized")
			s.logger.WarnContext(r.Context(), "rpc write unauthorized",
				slog.String("requestId", requestIDFrom(r.Context())),
				slog.String("reason", authErr.Message),
				logging.MaskField("authorization", r.Header.Get("Authorization")))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSendTransaction(w, r, req)
	case "bounty_getStatus":
		s.handleGetStatus(w, r, req)
	case "bounty_getConfig":
		s.handleGetConfig(w, r, req)
	case "bounty_getProgram":
		s.handleGetProgram(w, r, req)
	case "bounty_getClaim":
		s.handleGetClaim(w, r, req)
	case "bounty_getSettlement":
		s.handleGetSettlement(w, r, req)
	case "bounty_listClaims":
		s.handleListClaims(w, r, req)
	case "bounty_getBalance":
		s.handleGetBalance(w, r, req)
	case "bounty_getNonce":
		s.handleGetNonce(w, r, req)
	case "bounty_previewCut":
		s.handlePreviewCut(w, r, req)
	case "bounty_getReceipt":
		s.handleGetReceipt(w, r, req)
	case "bounty_listEvents":
		s.handleListEvents(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
