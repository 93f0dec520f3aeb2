// Package httpapi serves field values over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/mesh-intelligence/metafields/pkg/fields"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

// Handler exposes a fields.Service.
type Handler struct {
	svc     *fields.Service
	logger  *slog.Logger
	metrics http.Handler
}

// New creates a Handler. metrics may be nil, in which case /metrics is not
// routed.
func New(svc *fields.Service, logger *slog.Logger, metrics http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger, metrics: metrics}
}

// Routes builds the router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Route("/posts/{id}", func(r chi.Router) {
		r.Get("/fields", h.getAll(types.MetaKindPost))
		r.Put("/fields", h.save(types.MetaKindPost))
		r.Get("/fields/{name}", h.getOne(types.MetaKindPost))
		r.Post("/revisions/{rev}/restore", h.restoreRevision)
	})
	r.Route("/users/{id}", func(r chi.Router) {
		r.Get("/fields", h.getAll(types.MetaKindUser))
		r.Put("/fields", h.save(types.MetaKindUser))
		r.Get("/fields/{name}", h.getOne(types.MetaKindUser))
	})
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

// FieldResponse is the body of a single field lookup.
type FieldResponse struct {
	Name  string      `json:"name"`
	Value types.Value `json:"value"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) getAll(kind types.MetaKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.entityID(w, r, "id")
		if !ok {
			return
		}
		vals, err := h.svc.All(r.Context(), types.EntityRef{Kind: kind, ID: id})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if vals == nil {
			h.respondError(w, r, http.StatusNotFound, "entity not found")
			return
		}
		render.JSON(w, r, vals)
	}
}

func (h *Handler) getOne(kind types.MetaKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.entityID(w, r, "id")
		if !ok {
			return
		}
		name := chi.URLParam(r, "name")
		v, err := h.svc.Value(r.Context(), types.EntityRef{Kind: kind, ID: id}, name)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if v == nil {
			h.respondError(w, r, http.StatusNotFound, "field not found")
			return
		}
		render.JSON(w, r, FieldResponse{Name: name, Value: v})
	}
}

func (h *Handler) save(kind types.MetaKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.entityID(w, r, "id")
		if !ok {
			return
		}
		var input map[string]any
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			h.respondError(w, r, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ref := types.EntityRef{Kind: kind, ID: id}
		if err := h.svc.Save(r.Context(), ref, input); err != nil {
			h.fail(w, r, err)
			return
		}
		vals, err := h.svc.All(r.Context(), ref)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		render.JSON(w, r, vals)
	}
}

func (h *Handler) restoreRevision(w http.ResponseWriter, r *http.Request) {
	postID, ok := h.entityID(w, r, "id")
	if !ok {
		return
	}
	revID, ok := h.entityID(w, r, "rev")
	if !ok {
		return
	}
	if err := h.svc.RestoreRevision(r.Context(), postID, revID); err != nil {
		h.fail(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h *Handler) entityID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "invalid "+param)
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		h.respondError(w, r, http.StatusNotFound, "entity not found")
	case errors.Is(err, types.ErrInvalidInput):
		h.respondError(w, r, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		h.respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
