package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"

	"github.com/example/go-narrate/internal/config"
	"github.com/example/go-narrate/internal/ttsrpc"
)

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
	recorder       RequestRecorder
	metrics        http.Handler
}

func defaultOptions() options {
	return options{
		maxTextBytes:   65536,
		workers:        2,
		requestTimeout: 300 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for POST /tts.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent synthesis calls.
// Zero disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request synthesis deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecorder records per-request metrics.
func WithRecorder(r RequestRecorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *options) { o.metrics = h }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	responder *Responder
	opts      options
	sem       chan struct{} // worker slots
	log       *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, /voices, POST /tts
// and, when configured, /metrics.
func NewHandler(responder *Responder, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		responder: responder,
		opts:      opts,
		log:       opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/voices", h.handleVoices)
	mux.HandleFunc("/tts", h.handleTTS)
	if opts.metrics != nil {
		mux.Handle("/metrics", opts.metrics)
	}
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

func (h *handler) handleVoices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, VoiceList(h.responder.Catalog()))
}

type ttsRequest struct {
	Text       string  `json:"text"`
	Voice      string  `json:"voice"`
	SampleRate int     `json:"sample_rate"`
	Speed      float64 `json:"speed"`
}

func (h *handler) handleTTS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if h.opts.maxTextBytes > 0 && len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return
	}

	// Acquire a worker slot, honouring cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	ctx := r.Context()
	if h.opts.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.requestTimeout)
		defer cancel()
	}

	flusher, _ := w.(http.Flusher)
	start := time.Now()
	sent := 0

	err := h.responder.Stream(ctx, Request{
		Text:       req.Text,
		Voice:      req.Voice,
		SampleRate: req.SampleRate,
		Speed:      req.Speed,
	}, func(chunk []byte) error {
		if sent == 0 {
			w.Header().Set("Content-Type", "audio/wav")
			w.WriteHeader(http.StatusOK)
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		sent += len(chunk)
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	code := http.StatusOK
	if err != nil && sent == 0 {
		code = httpStatus(err)
	}
	if h.opts.recorder != nil {
		h.opts.recorder.RecordRequest(r.Context(), "http", http.StatusText(code), time.Since(start), sent)
	}

	attrs := []any{
		slog.String("voice", req.Voice),
		slog.Int("text_len", len(req.Text)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	}

	switch {
	case err == nil:
		h.log.InfoContext(r.Context(), "synthesis complete", append(attrs, slog.Int("wav_bytes", sent))...)
	case sent > 0:
		// Headers are gone; the client sees a truncated body.
		h.log.WarnContext(r.Context(), "stream interrupted", append(attrs, slog.String("error", err.Error()))...)
	case code == http.StatusGatewayTimeout:
		h.log.WarnContext(r.Context(), "synthesis timed out", append(attrs, slog.String("error", err.Error()))...)
		writeError(w, code, "synthesis timed out")
	default:
		h.log.ErrorContext(r.Context(), "synthesis failed", append(attrs, slog.String("error", err.Error()))...)
		writeError(w, code, err.Error())
	}
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server: HTTP and gRPC listeners with graceful shutdown
// ---------------------------------------------------------------------------

// Server runs the HTTP handler and, when an address is configured, the gRPC
// service until its context is cancelled.
type Server struct {
	cfg             config.ServerConfig
	responder       *Responder
	recorder        RequestRecorder
	metrics         http.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func New(cfg config.ServerConfig, responder *Responder) *Server {
	timeout := 30 * time.Second
	if cfg.ShutdownTimeout > 0 {
		timeout = time.Duration(cfg.ShutdownTimeout) * time.Second
	}
	return &Server{
		cfg:             cfg,
		responder:       responder,
		logger:          slog.Default(),
		shutdownTimeout: timeout,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithTelemetry mounts the metrics handler and records per-request metrics.
func (s *Server) WithTelemetry(metrics http.Handler, recorder RequestRecorder) *Server {
	s.metrics = metrics
	s.recorder = recorder
	return s
}

func (s *Server) WithLogger(l *slog.Logger) *Server {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	h := NewHandler(s.responder,
		WithWorkers(s.cfg.Workers),
		WithMaxTextBytes(s.cfg.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.RequestTimeout)*time.Second),
		WithLogger(s.logger),
		WithRecorder(s.recorder),
		WithMetricsHandler(s.metrics),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.logger.Info("http listening", slog.String("addr", s.cfg.ListenAddr))

	var grpcServer *grpc.Server
	if s.cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			_ = httpServer.Close()
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcServer = NewGRPCServer(s.responder, s.recorder, s.logger)
		go func() {
			errCh <- grpcServer.Serve(lis)
		}()
		s.logger.Info("grpc listening", slog.String("addr", lis.Addr().String()))
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if grpcServer != nil {
			stopGRPC(shutdownCtx, grpcServer)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if grpcServer != nil {
			grpcServer.Stop()
		}
		_ = httpServer.Close()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

// stopGRPC drains in-flight streams until ctx expires, then forces a stop.
func stopGRPC(ctx context.Context, s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}

// ProbeGRPC calls ListVoices on addr and returns the advertised voice count.
func ProbeGRPC(ctx context.Context, addr string, plaintext bool) (int, error) {
	conn, err := ttsrpc.Dial(addr, plaintext)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	resp, err := ttsrpc.NewClient(conn).ListVoices(ctx, &ttsrpc.ListVoicesRequest{})
	if err != nil {
		return 0, err
	}
	return len(resp.Voices), nil
}
