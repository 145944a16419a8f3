package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/userdash/internal/scroll"
	"github.com/odyssey-erp/userdash/internal/shared"
	"github.com/odyssey-erp/userdash/internal/view"
)

// Handler renders the dashboard over the shared Store and Searcher.
type Handler struct {
	logger    *slog.Logger
	store     *Store
	searcher  *Searcher
	observer  *scroll.Observer
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, store *Store, searcher *Searcher, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, store: store, searcher: searcher, templates: templates, csrf: csrf}
	h.observer = scroll.NewObserver(scroll.Options{
		HasMore:   store.HasMore,
		IsLoading: store.IsLoading,
		Enabled:   func() bool { return !searcher.Snapshot().Active() },
	})
	return h
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.dashboard)
	r.Get("/more", h.loadMore)
	r.Get("/search", h.search)
	r.Post("/users", h.createUser)
	r.Get("/users/{id}/edit", h.editUser)
	r.Post("/users/{id}", h.updateUser)
	r.Post("/users/{id}/delete", h.deleteUser)
}

// Row is one rendered table row.
type Row struct {
	User     User
	Deleting bool
	Sentinel bool
}

type formErrors map[string]string

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	h.ensureLoaded(r)
	data := h.listData()
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		data["Search"] = h.searcher.Search(r.Context(), q)
	} else {
		h.searcher.Clear()
	}
	data["Form"] = Input{}
	data["Errors"] = formErrors{}
	h.render(w, r, "pages/dashboard.html", "Users", data, http.StatusOK)
}

func (h *Handler) loadMore(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if !h.observer.Visible(after) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	before := len(h.store.Snapshot().Users)
	if err := h.store.LoadMore(r.Context()); err != nil {
		h.render(w, r, "partials/load_error.html", "", map[string]any{"Error": shared.UserSafeMessage(err)}, http.StatusOK)
		return
	}
	state := h.store.Snapshot()
	h.observer.Observe(sentinelKey(state))
	if len(state.Users) <= before {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.render(w, r, "partials/user_rows.html", "", map[string]any{"Rows": h.rows(state, before)}, http.StatusOK)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	var overlay Overlay
	if strings.TrimSpace(q) == "" {
		overlay = h.searcher.Clear()
	} else {
		overlay = h.searcher.Search(r.Context(), q)
	}
	h.render(w, r, "partials/search_results.html", "", map[string]any{"Search": overlay}, http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectWithFlash(w, r, "/dashboard", shared.FlashError, "Invalid form submission")
		return
	}
	in := Input{Name: r.PostFormValue("name"), Email: r.PostFormValue("email")}
	if errs := Validate(in); !errs.Valid() {
		h.ensureLoaded(r)
		data := h.listData()
		data["Form"] = in
		data["Errors"] = errs.Map()
		h.render(w, r, "pages/dashboard.html", "Users", data, http.StatusBadRequest)
		return
	}
	user, err := h.store.Create(r.Context(), in)
	if err != nil {
		h.redirectWithFlash(w, r, "/dashboard", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/dashboard", shared.FlashSuccess, "Added "+user.Name)
}

func (h *Handler) editUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, found := h.store.Get(id)
	if !found {
		h.redirectWithFlash(w, r, "/dashboard", shared.FlashError, "Resource not found")
		return
	}
	h.render(w, r, "pages/user_edit.html", "Edit user", map[string]any{
		"User":   user,
		"Form":   Input{Name: user.Name, Email: user.Email},
		"Errors": formErrors{},
	}, http.StatusOK)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirectWithFlash(w, r, "/dashboard", shared.FlashError, "Invalid form submission")
		return
	}
	in := Input{Name: r.PostFormValue("name"), Email: r.PostFormValue("email")}
	if errs := Validate(in); !errs.Valid() {
		user, _ := h.store.Get(id)
		user.ID = id
		h.render(w, r, "pages/user_edit.html", "Edit user", map[string]any{
			"User":   user,
			"Form":   in,
			"Errors": errs.Map(),
		}, http.StatusBadRequest)
		return
	}
	if _, err := h.store.Update(r.Context(), id, in); err != nil {
		h.redirectWithFlash(w, r, "/dashboard", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/dashboard", shared.FlashSuccess, "User updated")
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.store.Remove(r.Context(), id); err != nil {
		msg := shared.UserSafeMessage(err)
		if errors.Is(err, shared.ErrNotFound) {
			msg = "User no longer exists"
		}
		h.redirectWithFlash(w, r, "/dashboard", shared.FlashError, msg)
		return
	}
	h.redirectWithFlash(w, r, "/dashboard", shared.FlashSuccess, "User deleted")
}

func (h *Handler) ensureLoaded(r *http.Request) {
	if h.store.Snapshot().Loaded {
		return
	}
	// The error is kept on the Store and rendered with the list.
	_ = h.store.FetchInitial(r.Context())
}

func (h *Handler) listData() map[string]any {
	state := h.store.Snapshot()
	h.observer.Observe(sentinelKey(state))
	var loadErr string
	if state.Err != nil {
		loadErr = shared.UserSafeMessage(state.Err)
	}
	return map[string]any{
		"Rows":      h.rows(state, 0),
		"Total":     state.Cursor.Total,
		"Shown":     len(state.Users),
		"HasMore":   state.Cursor.HasMore,
		"LoadError": loadErr,
	}
}

func (h *Handler) rows(state State, from int) []Row {
	rows := make([]Row, 0, len(state.Users)-from)
	for i := from; i < len(state.Users); i++ {
		u := state.Users[i]
		rows = append(rows, Row{
			User:     u,
			Deleting: h.store.IsDeleting(u.ID),
			Sentinel: state.Cursor.HasMore && i == len(state.Users)-1,
		})
	}
	return rows
}

func sentinelKey(state State) string {
	if !state.Cursor.HasMore || len(state.Users) == 0 {
		return ""
	}
	return strconv.FormatInt(state.Users[len(state.Users)-1].ID, 10)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	if h.csrf != nil && sess != nil {
		csrfToken, _ = h.csrf.EnsureToken(sess)
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if strings.HasPrefix(template, "pages/") {
		viewData.Flash = sess.PopFlash()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err), slog.String("request_id", middleware.GetReqID(r.Context())))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
