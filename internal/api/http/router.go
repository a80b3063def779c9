package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/redirector/internal/broadcast"
	"github.com/vadimbarashkov/redirector/internal/models"
	"github.com/vadimbarashkov/redirector/internal/ratelimit"
	"github.com/vadimbarashkov/redirector/internal/service"
)

// RedirectService resolves short codes on the hot path.
type RedirectService interface {
	Resolve(ctx context.Context, shortCode string, visit service.Visit) (string, error)
	VerifyPassword(ctx context.Context, shortCode, password string, visit service.Visit) (string, error)
}

// LinkService manages link records.
type LinkService interface {
	CreateLink(ctx context.Context, params service.CreateLinkParams) (*models.Link, error)
	ModifyLink(ctx context.Context, shortCode, originalURL string) (*models.Link, error)
	DeleteLink(ctx context.Context, shortCode string) error
}

// Deps bundles everything the router needs.
type Deps struct {
	Logger          *httplog.Logger
	RedirectSvc     RedirectService
	LinkSvc         LinkService
	Limiter         *ratelimit.Limiter
	Hub             *broadcast.Hub
	JWTSecret       []byte
	PasswordPageURL string
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	validate := getValidate()
	auth := jwtAuth(deps.JWTSecret)

	// The redirect tier is separate and far more permissive: redirects
	// must not be starved by analytics or API traffic.
	r.With(rateLimit(deps.Limiter, ratelimit.TierRedirect)).
		Get("/{code}", handleRedirect(deps.RedirectSvc, deps.PasswordPageURL))

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(deps.Limiter, ratelimit.TierBurst))

		r.With(rateLimit(deps.Limiter, ratelimit.TierAuth)).
			Post("/{code}/verify", handleVerifyPassword(deps.RedirectSvc, validate))

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(deps.Limiter, ratelimit.TierAPI))
			r.Use(auth)

			r.Get("/ws", handleWS(deps.Hub, deps.Logger.Logger))
			r.Get("/sse", handleSSE(deps.Hub, deps.Logger.Logger))
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   []string{"https://*"},
				AllowedMethods:   []string{"POST", "GET", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
				AllowCredentials: false,
				MaxAge:           84600,
			}))
			r.Use(rateLimit(deps.Limiter, ratelimit.TierAPI))

			r.Get("/ping", handlePing)

			r.Route("/links", func(r chi.Router) {
				r.Use(auth)

				r.With(rateLimit(deps.Limiter, ratelimit.TierCreate)).
					Post("/", handleCreateLink(deps.LinkSvc, validate))

				r.Route("/{code}", func(r chi.Router) {
					r.Put("/", handleModifyLink(deps.LinkSvc, validate))
					r.Delete("/", handleDeleteLink(deps.LinkSvc))
				})
			})
		})
	})

	return r
}
