package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"
	"github.com/rs/cors"
	"github.com/sunledger/sunledger/pkg/log"
	"github.com/sunledger/sunledger/pkg/payment"
	"github.com/sunledger/sunledger/pkg/storage"
	"github.com/sunledger/sunledger/pkg/syncer"
	"github.com/sunledger/sunledger/pkg/types"
)

const (
	authTokenCookie = "auth_token"

	// request bodies are small JSON documents
	maxBodyBytes = 1 << 20
)

type contextKey string

const (
	userContextKey contextKey = "user"
)

// tokenVerifier validates a raw OIDC ID token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

var oidcIssuers = map[string]string{
	"google": "https://accounts.google.com",
	"apple":  "https://appleid.apple.com",
}

// Server handles the HTTP API for solar units, energy records and payments.
type Server struct {
	storage  storage.Database
	syncer   *syncer.Syncer
	payments payment.Processor

	listenAddr string
	httpServer *http.Server

	adminEmails   []string
	oidcVerifiers map[string]tokenVerifier
	roleClaim     string
	authDisabled  bool
	devUserID     string
	corsOrigins   []string
	serverName    string
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(db storage.Database, sy *syncer.Syncer, p payment.Processor) *Server {
	srv := &Server{
		storage:    db,
		syncer:     sy,
		payments:   p,
		serverName: "sunledger",
	}
	if revision := os.Getenv("K_REVISION"); revision != "" {
		srv.serverName = revision
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	adminEmails := lflag.String("admin-emails", "", "comma-delimited list of email addresses that are always admins")
	oidcAudiences := map[string]string{}
	lflag.JSON(&oidcAudiences, "oidc-audiences", oidcAudiences, "JSON map of issuer (google, apple or an https issuer URL) to audience/client ID")
	roleClaim := lflag.String("oidc-role-claim", "metadata.role", "dotted path of the ID token claim holding the caller's role")
	authDisabled := lflag.Bool("auth-disabled", false, "Treat every request as an admin (development only)")
	devUserID := lflag.String("dev-user-id", "dev-user", "User ID assigned to requests when auth-disabled is set")
	corsOrigins := lflag.String("cors-origins", "", "comma-delimited list of origins allowed to call the API from a browser")

	lflag.Do(func() {
		ctx := context.Background()
		srv.listenAddr = *listenAddr
		srv.adminEmails = splitList(*adminEmails)
		srv.corsOrigins = splitList(*corsOrigins)
		srv.roleClaim = *roleClaim
		srv.authDisabled = *authDisabled
		srv.devUserID = *devUserID

		srv.oidcVerifiers = make(map[string]tokenVerifier, len(oidcAudiences))
		for name, audience := range oidcAudiences {
			issuer, ok := oidcIssuers[name]
			if !ok {
				if !strings.HasPrefix(name, "https://") {
					log.Ctx(ctx).Error("unsupported oidc issuer", slog.String("issuer", name))
					os.Exit(1)
				}
				issuer = name
			}
			provider, err := oidc.NewProvider(ctx, issuer)
			if err != nil {
				log.Ctx(ctx).Error("failed to initialize OIDC provider", slog.String("issuer", issuer), slog.Any("error", err))
				os.Exit(1)
			}
			srv.oidcVerifiers[name] = provider.Verifier(&oidc.Config{ClientID: audience}).Verify
		}

		if len(srv.oidcVerifiers) == 0 && !srv.authDisabled {
			log.Ctx(ctx).Error("oidc-audiences is required unless auth-disabled is set")
			os.Exit(1)
		}
		if srv.authDisabled {
			log.Ctx(ctx).Warn("authentication is disabled, every request is an admin", slog.String("userID", srv.devUserID))
		}
	})

	return srv
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	apiMux.HandleFunc("POST /api/auth/login", s.handleLogin)
	apiMux.HandleFunc("POST /api/auth/logout", s.handleLogout)

	apiMux.HandleFunc("GET /api/solar-units", s.handleListSolarUnits)
	apiMux.Handle("POST /api/solar-units", s.adminOnly(s.handleCreateSolarUnit))
	apiMux.HandleFunc("GET /api/solar-units/{id}", s.handleGetSolarUnit)
	apiMux.Handle("PUT /api/solar-units/{id}", s.adminOnly(s.handleUpdateSolarUnit))
	apiMux.Handle("DELETE /api/solar-units/{id}", s.adminOnly(s.handleDeleteSolarUnit))
	apiMux.HandleFunc("GET /api/solar-units/user/{userId}", s.handleListSolarUnitsByUser)
	apiMux.HandleFunc("GET /api/solar-units/status/{status}", s.handleListSolarUnitsByStatus)
	apiMux.Handle("GET /api/solar-units/unassigned/list", s.adminOnly(s.handleListUnassignedSolarUnits))
	apiMux.Handle("PATCH /api/solar-units/{id}/status", s.adminOnly(s.handleUpdateSolarUnitStatus))
	apiMux.Handle("PATCH /api/solar-units/{id}/assign", s.adminOnly(s.handleAssignSolarUnit))
	apiMux.Handle("PATCH /api/solar-units/{id}/unassign", s.adminOnly(s.handleUnassignSolarUnit))

	apiMux.Handle("POST /api/energy-records", s.adminOnly(s.handleCreateEnergyRecord))
	apiMux.HandleFunc("GET /api/energy-records/{id}", s.handleGetEnergyRecord)
	apiMux.Handle("PUT /api/energy-records/{id}", s.adminOnly(s.handleUpdateEnergyRecord))
	apiMux.Handle("DELETE /api/energy-records/{id}", s.adminOnly(s.handleDeleteEnergyRecord))
	apiMux.Handle("GET /api/energy-records/solar-unit/{solarUnitId}", s.reconcile(validPage, s.handleListEnergyRecords))
	apiMux.HandleFunc("GET /api/energy-records/solar-unit/{solarUnitId}/latest", s.handleLatestEnergyRecord)
	apiMux.HandleFunc("GET /api/energy-records/solar-unit/{solarUnitId}/total", s.handleEnergyTotals)
	apiMux.HandleFunc("GET /api/energy-records/solar-unit/{solarUnitId}/analytics", s.handleEnergyAnalytics)
	apiMux.Handle("GET /api/energy-records/solar-unit/{solarUnitId}/date-range", s.reconcile(validDateRange, s.handleEnergyRecordsByDateRange))
	apiMux.Handle("POST /api/energy-records/solar-unit/{solarUnitId}/sync", s.adminOnly(s.handleSyncEnergyRecords))

	apiMux.HandleFunc("POST /api/payments/create-checkout-session", s.handleCreateCheckoutSession)
	apiMux.HandleFunc("GET /api/payments/session-status", s.handleSessionStatus)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))
	// signed by the payment provider instead of carrying a caller identity
	mux.HandleFunc("POST /api/stripe/webhook", s.handleStripeWebhook)
	mux.HandleFunc("/healthz", s.handleHealthz)

	var h http.Handler = s.securityHeadersMiddleware(mux)
	if len(s.corsOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler(h)
	}
	return s.revisionMiddleware(gziphandler.GzipHandler(h))
}

func (s *Server) getUser(r *http.Request) types.User {
	if user, ok := r.Context().Value(userContextKey).(types.User); ok {
		return user
	}
	return types.User{}
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

// errorStatus maps a classified error to its HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeError responds with the message of a classified error or a generic
// message for anything else. Unclassified errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var te *types.Error
	if !errors.As(err, &te) {
		log.Ctx(ctx).ErrorContext(ctx, "request failed", slog.Any("error", err))
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	code := errorStatus(te)
	log.Ctx(ctx).InfoContext(ctx, "request rejected", slog.Int("status", code), slog.String("error", te.Message))
	writeJSONError(w, te.Message, code)
}

// limitedBody returns the request body capped at maxBodyBytes.
func limitedBody(w http.ResponseWriter, r *http.Request) io.Reader {
	return http.MaxBytesReader(w, r.Body, maxBodyBytes)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
