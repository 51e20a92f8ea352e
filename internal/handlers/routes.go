package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/white/crm-backend/internal/middleware"
	"github.com/white/crm-backend/internal/utils"
)

// Router holds everything needed to build the HTTP handler tree.
type Router struct {
	Auth       *AuthHandler
	Activities *ActivityHandler
	Contacts   *ContactHandler
	Deals      *DealHandler
	Email      *EmailHandler
	Social     *SocialHandler
	Team       *TeamHandler
	Health     *HealthHandler

	Tokens         middleware.TokenValidator
	KeySet         func() utils.JWKS
	AllowedOrigins []string
	SwaggerURL     string
}

// NewRouter mounts the public and authenticated API under /api/v1 and wraps
// the tree in CORS handling.
func NewRouter(rt Router) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	if rt.Health != nil {
		router.HandleFunc("/health", rt.Health.GetOverallHealth).Methods(http.MethodGet)
	}

	if rt.KeySet != nil {
		router.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
			respondWithJSON(w, http.StatusOK, rt.KeySet())
		}).Methods(http.MethodGet)
	}

	if rt.SwaggerURL != "" {
		router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
			httpSwagger.URL(rt.SwaggerURL),
			httpSwagger.DeepLinking(true),
			httpSwagger.DocExpansion("none"),
			httpSwagger.DomID("swagger-ui"),
		)).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	if rt.Auth != nil {
		rt.Auth.RegisterPublic(api)
	}

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.JWTAuth(rt.Tokens))

	if rt.Auth != nil {
		rt.Auth.Register(protected)
	}
	if rt.Activities != nil {
		rt.Activities.Register(protected)
	}
	if rt.Contacts != nil {
		rt.Contacts.Register(protected)
	}
	if rt.Deals != nil {
		rt.Deals.Register(protected)
	}
	if rt.Email != nil {
		rt.Email.Register(protected)
	}
	if rt.Social != nil {
		rt.Social.Register(protected)
	}
	if rt.Team != nil {
		rt.Team.Register(protected)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   rt.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-Next-Activity-ID"},
	})
	return c.Handler(router)
}
