package datasets

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/userdash/internal/shared"
	"github.com/odyssey-erp/userdash/internal/view"
)

// Handler renders the Instagram and Names pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// MountRoutes registers /insta and /names on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/insta", h.instagram)
	r.Get("/names", h.names)
}

func (h *Handler) instagram(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Instagram(r.Context(), wantsRefresh(r))
	h.render(w, r, "pages/insta.html", "Instagram", snap.Records, snap.FetchedAt, err)
}

func (h *Handler) names(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Names(r.Context(), wantsRefresh(r))
	h.render(w, r, "pages/names.html", "Names", snap.Records, snap.FetchedAt, err)
}

func wantsRefresh(r *http.Request) bool {
	switch r.URL.Query().Get("refresh") {
	case "1", "true":
		return true
	}
	return false
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, records any, fetchedAt time.Time, fetchErr error) {
	status := http.StatusOK
	data := map[string]any{"Records": records, "FetchedAt": fetchedAt, "Error": ""}
	if fetchErr != nil {
		status = http.StatusBadGateway
		data["Error"] = shared.UserSafeMessage(fetchErr)
	}
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	if h.csrf != nil && sess != nil {
		csrfToken, _ = h.csrf.EnsureToken(sess)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Data:        data,
	}); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
	}
}
