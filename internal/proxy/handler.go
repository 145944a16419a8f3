package proxy

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/userdash/internal/platform/httpx"
)

const maxInboundBody = 1 << 20

// Handler exposes the Service at /api/proxy/*.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the catch-all proxy routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/*", h.forward)
	r.Post("/*", h.forward)
	r.Put("/*", h.forward)
	r.Delete("/*", h.forward)
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInboundBody))
		if err != nil {
			h.logger.Warn("read proxy body", slog.Any("error", err), slog.String("request_id", middleware.GetReqID(r.Context())))
		}
		body = raw
	}
	result := h.service.Forward(r.Context(), Request{
		Method:   r.Method,
		Segments: strings.Split(chi.URLParam(r, "*"), "/"),
		RawQuery: r.URL.RawQuery,
		Body:     body,
	})
	httpx.Raw(w, result.Status, result.Body)
}
