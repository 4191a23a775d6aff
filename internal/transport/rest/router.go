package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/openscholar/preprintd/internal/config"
	"github.com/openscholar/preprintd/internal/transport/middleware"
)

// tokenValidator validates bearer tokens for the auth middleware.
type tokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

// NewRouter builds the HTTP routing table with the full middleware chain.
func NewRouter(
	logger *slog.Logger,
	authH *AuthHandler,
	preprintH *PreprintHandler,
	healthH *HealthHandler,
	validator tokenValidator,
	corsCfg config.CORSConfig,
	limiter *middleware.RateLimiter,
) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/signup", authH.Register).Methods(http.MethodPost)
	r.HandleFunc("/login", authH.Login).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", authH.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/logout", authH.Logout).Methods(http.MethodPost)

	r.HandleFunc("/submit", preprintH.Submit).Methods(http.MethodPost)
	r.HandleFunc("/search", preprintH.Search).Methods(http.MethodGet)
	r.HandleFunc("/preprints", preprintH.List).Methods(http.MethodGet)
	r.HandleFunc("/preprint/{id}", preprintH.Get).Methods(http.MethodGet)
	r.HandleFunc("/latestpreprints", preprintH.Latest).Methods(http.MethodGet)

	r.HandleFunc("/live", healthH.Live).Methods(http.MethodGet)
	r.HandleFunc("/ready", healthH.Ready).Methods(http.MethodGet)
	r.HandleFunc("/health", healthH.Health).Methods(http.MethodGet)

	chain := middleware.Chain(
		middleware.RequestID,
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.CORS(corsCfg),
		limiter.Limit(),
		middleware.Auth(validator),
	)

	return chain(r)
}
