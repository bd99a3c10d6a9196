package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/openarb-backend/internal/logging"
	"github.com/kjannette/openarb-backend/internal/models"
)

const maxBodyBytes = 1 << 20

// AccountService is the operation surface the handlers drive.
type AccountService interface {
	ConnectWallet(id models.Identity, walletType string) error
	SaveSettings(id models.Identity, settings models.Settings) error
	RecordTrade(id models.Identity, tokenPair string, profit float64) (string, error)
	GetUserData(id models.Identity) (models.Account, error)
	GetTradeHistory() []models.TradeRecord
	Stats() (accounts, trades int)
}

type MarketFeed interface {
	Opportunities() []models.ArbitrageOpportunity
	Prices() []models.PriceTick
}

type IdentityResolver interface {
	Resolve(r *http.Request) (models.Identity, error)
}

// StreamHandler upgrades a request into a live trade stream.
type StreamHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	ClientCount() int
}

// StorageChecker reports on the snapshot backend. Nil means in-memory only.
type StorageChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

type Options struct {
	Service    AccountService
	Feed       MarketFeed
	Resolver   IdentityResolver
	Stream     StreamHandler
	Storage    StorageChecker
	Port       int
	APIKey     string
	CORSOrigin string
	Logger     logrus.FieldLogger
}

type Server struct {
	svc        AccountService
	feed       MarketFeed
	resolver   IdentityResolver
	stream     StreamHandler
	storage    StorageChecker
	httpServer *http.Server
	apiKey     string
	log        *logrus.Entry
}

func NewServer(opts Options) *Server {
	s := &Server{
		svc:      opts.Service,
		feed:     opts.Feed,
		resolver: opts.Resolver,
		stream:   opts.Stream,
		storage:  opts.Storage,
		apiKey:   opts.APIKey,
		log:      logging.Component(opts.Logger, "api"),
	}

	mux := http.NewServeMux()

	// Account routes
	mux.Handle("POST /v1/wallet/connect", s.withIdentity(s.handleConnectWallet))
	mux.Handle("PUT /v1/settings", s.withIdentity(s.handleSaveSettings))
	mux.Handle("GET /v1/user", s.withIdentity(s.handleGetUser))

	// Trade routes
	mux.Handle("POST /v1/trades", s.withIdentity(s.handleRecordTrade))
	mux.HandleFunc("GET /v1/trades/history", s.handleTradeHistory)
	if s.stream != nil {
		mux.HandleFunc("GET "+streamPath, s.stream.ServeWS)
	}

	// Market routes
	mux.HandleFunc("GET /v1/arbitrage/opportunities", s.handleOpportunities)
	mux.HandleFunc("GET /v1/prices/feed", s.handlePriceFeed)

	// No auth required
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := s.requestLogger(s.recoverer(s.authMiddleware(corsMiddleware(mux, opts.CORSOrigin))))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("REST API server started")
	if s.apiKey != "" {
		s.log.Info("Authentication: enabled (Bearer token)")
	} else {
		s.log.Warn("Authentication: disabled (no API_KEY configured)")
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- request helpers ---

// decodeBody reads a single JSON object into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// --- response helpers ---

// writeJSON encodes v before touching the response so an unencodable value
// becomes a 500 instead of a status with an empty body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logrus.WithError(err).Error("Encode response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
