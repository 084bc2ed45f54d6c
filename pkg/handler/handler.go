// Package handler serves the extension registry over HTTP as JSON.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/text/language"

	"extblock/pkg/registry"
	"extblock/pkg/version"
)

// BasePath is the prefix every route is mounted under.
const BasePath = "/api"

// Registry is the subset of *registry.Registry the handlers call.
type Registry interface {
	List(ctx context.Context) (registry.Listing, error)
	ToggleFixed(ctx context.Context, raw string) (registry.Record, error)
	AddCustom(ctx context.Context, raw string) (registry.Record, error)
	DeleteCustom(ctx context.Context, raw string) error
}

// Handler holds the HTTP endpoints.
type Handler struct {
	reg      Registry
	log      *slog.Logger
	tags     []language.Tag
	matcher  language.Matcher
	fallback language.Tag
}

// New creates a Handler. Messages fall back to fallback when the request
// carries no usable Accept-Language header.
func New(reg Registry, fallback language.Tag, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	// Put the fallback first so the matcher prefers it on a tie.
	tags := []language.Tag{fallback}
	for _, tag := range registry.Languages {
		if tag != fallback {
			tags = append(tags, tag)
		}
	}
	return &Handler{
		reg:      reg,
		log:      log,
		tags:     tags,
		matcher:  language.NewMatcher(tags),
		fallback: fallback,
	}
}

// Routes returns a mux with every endpoint registered.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+BasePath+"/extensions", h.list)
	mux.HandleFunc("PATCH "+BasePath+"/extensions/fixed/{extension}", h.toggleFixed)
	mux.HandleFunc("POST "+BasePath+"/extensions/custom", h.addCustom)
	mux.HandleFunc("DELETE "+BasePath+"/extensions/custom/{extension}", h.deleteCustom)
	mux.HandleFunc("GET "+BasePath+"/health", h.health)
	return mux
}

type fixedExtension struct {
	Extension string `json:"extension"`
	Active    bool   `json:"active"`
}

type customExtension struct {
	Extension string `json:"extension"`
}

// ExtensionResponse is the body of GET /api/extensions.
type ExtensionResponse struct {
	FixedExtensions  []fixedExtension  `json:"fixedExtensions"`
	CustomExtensions []customExtension `json:"customExtensions"`
	CustomCount      int               `json:"customCount"`
	MaxCustomCount   int               `json:"maxCustomCount"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newExtensionResponse(l registry.Listing) ExtensionResponse {
	resp := ExtensionResponse{
		FixedExtensions:  make([]fixedExtension, 0, len(l.Fixed)),
		CustomExtensions: make([]customExtension, 0, len(l.Custom)),
		CustomCount:      l.CustomCount,
		MaxCustomCount:   l.MaxCustomCount,
	}
	for _, rec := range l.Fixed {
		resp.FixedExtensions = append(resp.FixedExtensions, fixedExtension{Extension: rec.Extension, Active: rec.Active})
	}
	for _, rec := range l.Custom {
		resp.CustomExtensions = append(resp.CustomExtensions, customExtension{Extension: rec.Extension})
	}
	return resp
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	listing, err := h.reg.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newExtensionResponse(listing))
}

func (h *Handler) toggleFixed(w http.ResponseWriter, r *http.Request) {
	if _, err := h.reg.ToggleFixed(r.Context(), r.PathValue("extension")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) addCustom(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeCustomRequest(r.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.reg.AddCustom(r.Context(), raw); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) deleteCustom(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.DeleteCustom(r.Context(), r.PathValue("extension")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	tag := h.messageLanguage(r)

	var regErr *registry.Error
	if errors.As(err, &regErr) {
		h.log.Debug("request rejected", "request_id", RequestID(r.Context()), "code", regErr.Code, "extension", regErr.Extension)
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    string(regErr.Code),
			Message: registry.Message(tag, regErr.Code),
		})
		return
	}

	var fieldErr *fieldError
	if errors.As(err, &fieldErr) {
		h.log.Debug("request validation failed", "request_id", RequestID(r.Context()), "error", fieldErr.Detail)
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    string(registry.CodeValidation),
			Message: registry.FieldMessage(tag, fieldErr.Key),
		})
		return
	}

	h.log.Error("request failed", "request_id", RequestID(r.Context()), "method", r.Method, "path", r.URL.Path, "error", err)
	h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Code:    string(registry.CodeInternal),
		Message: registry.Message(tag, registry.CodeInternal),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

// messageLanguage picks the message language from Accept-Language.
func (h *Handler) messageLanguage(r *http.Request) language.Tag {
	accept := r.Header.Get("Accept-Language")
	if accept == "" {
		return h.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return h.fallback
	}
	_, idx, conf := h.matcher.Match(tags...)
	if conf == language.No {
		return h.fallback
	}
	return h.tags[idx]
}
