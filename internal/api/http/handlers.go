package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/redirector/internal/database"
	"github.com/vadimbarashkov/redirector/internal/models"
	"github.com/vadimbarashkov/redirector/internal/service"
	"github.com/vadimbarashkov/redirector/pkg/response"
)

// passwordHeader carries a link password supplied directly on the
// redirect request, bypassing the password page.
const passwordHeader = "X-Link-Password"

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

func visitFromRequest(r *http.Request) service.Visit {
	return service.Visit{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
		Password:  r.Header.Get(passwordHeader),
	}
}

func handleRedirect(svc RedirectService, passwordPageURL string) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		dest, err := svc.Resolve(r.Context(), code, visitFromRequest(r))
		if err != nil {
			var inactiveErr *service.LinkInactiveError

			switch {
			case errors.Is(err, database.ErrLinkNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.As(err, &inactiveErr):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.GoneResponse(inactiveErr.ReasonText()))
			case errors.Is(err, service.ErrPasswordRequired):
				http.Redirect(w, r, passwordPageURL+"?code="+url.QueryEscape(code), http.StatusFound)
			case errors.Is(err, service.ErrPasswordIncorrect):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.UnauthorizedResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}

			return
		}

		http.Redirect(w, r, dest, http.StatusFound)
	}
}

type verifyRequest struct {
	Password string `json:"password" validate:"required"`
}

type verifyResponse struct {
	URL string `json:"url"`
}

func handleVerifyPassword(svc RedirectService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleVerifyPassword"
	const successMsg = "The password was verified successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		code := chi.URLParam(r, "code")

		dest, err := svc.VerifyPassword(r.Context(), code, req.Password, visitFromRequest(r))
		if err != nil {
			var inactiveErr *service.LinkInactiveError

			switch {
			case errors.Is(err, database.ErrLinkNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.As(err, &inactiveErr):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.GoneResponse(inactiveErr.ReasonText()))
			case errors.Is(err, service.ErrPasswordIncorrect):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.UnauthorizedResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}

			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, verifyResponse{URL: dest}))
	}
}

type linkRequest struct {
	URL       string     `json:"url" validate:"required,url"`
	Password  string     `json:"password,omitempty" validate:"omitempty,min=4"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	MaxClicks *int64     `json:"max_clicks,omitempty" validate:"omitempty,gt=0"`
}

type linkUpdateRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type linkResponse struct {
	ID          int64      `json:"id"`
	ShortCode   string     `json:"short_code"`
	URL         string     `json:"url"`
	HasPassword bool       `json:"has_password"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxClicks   *int64     `json:"max_clicks,omitempty"`
	ClickCount  int64      `json:"click_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toLinkResponse(link *models.Link) linkResponse {
	return linkResponse{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		URL:         link.OriginalURL,
		HasPassword: link.HasPassword(),
		StartsAt:    link.StartsAt,
		ExpiresAt:   link.ExpiresAt,
		MaxClicks:   link.MaxClicks,
		ClickCount:  link.ClickCount,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

func handleCreateLink(svc LinkService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCreateLink"
	const successMsg = "The link has been created successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req linkRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		params := service.CreateLinkParams{
			OriginalURL: req.URL,
			Password:    req.Password,
			StartsAt:    req.StartsAt,
			ExpiresAt:   req.ExpiresAt,
			MaxClicks:   req.MaxClicks,
		}
		if userID, ok := userIDFromContext(r.Context()); ok {
			params.UserID = &userID
		}

		link, err := svc.CreateLink(r.Context(), params)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(link)))
	}
}

func handleModifyLink(svc LinkService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleModifyLink"
	const successMsg = "The link was successfully modified."

	return func(w http.ResponseWriter, r *http.Request) {
		var req linkUpdateRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		shortCode := chi.URLParam(r, "code")

		link, err := svc.ModifyLink(r.Context(), shortCode, req.URL)
		if err != nil {
			if errors.Is(err, database.ErrLinkNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(link)))
	}
}

func handleDeleteLink(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleDeleteLink"
	const successMsg = "The link was successfully deleted."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "code")

		err := svc.DeleteLink(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, database.ErrLinkNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}
