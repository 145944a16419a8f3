// Package tui is a terminal rendition of the user dashboard. It drives the
// same Store and Searcher as the web handlers, over the proxy's HTTP API.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/odyssey-erp/userdash/internal/scroll"
	"github.com/odyssey-erp/userdash/internal/shared"
	"github.com/odyssey-erp/userdash/internal/users"
)

type mode int

const (
	modeList mode = iota
	modeSearch
	modeForm
	modeConfirm
)

type (
	loadedMsg  struct{ err error }
	overlayMsg users.Overlay
	savedMsg   struct {
		verb string
		user users.User
		err  error
	}
	deletedMsg struct {
		id  int64
		err error
	}
)

type userForm struct {
	editing int64
	inputs  [2]textinput.Model
	focus   int
	errs    users.FieldErrors
}

func newUserForm(editing int64, current users.Input) userForm {
	f := userForm{editing: editing}
	for i, placeholder := range []string{"Name", "Email"} {
		in := textinput.New()
		in.Placeholder = placeholder
		in.CharLimit = 120
		in.Width = 40
		f.inputs[i] = in
	}
	f.inputs[0].SetValue(current.Name)
	f.inputs[1].SetValue(current.Email)
	f.inputs[0].Focus()
	return f
}

func (f userForm) input() users.Input {
	return users.Input{Name: f.inputs[0].Value(), Email: f.inputs[1].Value()}
}

func (f *userForm) cycle() {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + 1) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

// Model is the bubbletea model for the dashboard.
type Model struct {
	ctx      context.Context
	store    *users.Store
	searcher *users.Searcher
	observer *scroll.Observer
	overlays <-chan users.Overlay
	styles   Styles

	table  table.Model
	search textinput.Model
	form   userForm
	mode   mode

	overlay     users.Overlay
	loadingMore bool
	confirmID   int64
	removing    int64
	status      string
	statusErr   bool
}

// New wires a Model to store and searcher. The searcher's change callback is
// taken over to feed overlay updates into the program.
func New(ctx context.Context, store *users.Store, searcher *users.Searcher) Model {
	overlays := make(chan users.Overlay, 16)
	searcher.OnChange(func(o users.Overlay) {
		select {
		case overlays <- o:
		default:
		}
	})

	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Name", Width: 24},
		{Title: "Email", Width: 32},
		{Title: "", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	ts.Selected = ts.Selected.Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#39ff14"))
	t.SetStyles(ts)

	search := textinput.New()
	search.Placeholder = "Search by name or email"
	search.Prompt = "/ "
	search.CharLimit = 80
	search.Width = 40

	m := Model{
		ctx:      ctx,
		store:    store,
		searcher: searcher,
		overlays: overlays,
		styles:   DefaultStyles(),
		table:    t,
		search:   search,
	}
	m.observer = scroll.NewObserver(scroll.Options{
		HasMore:   store.HasMore,
		IsLoading: store.IsLoading,
		Enabled:   func() bool { return !searcher.Snapshot().Active() },
	})
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchInitial(), m.waitOverlay())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if h := msg.Height - 10; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case loadedMsg:
		m.loadingMore = false
		m.setStatus(msg.err, "")
		m.refreshRows()
		return m, nil

	case overlayMsg:
		m.overlay = users.Overlay(msg)
		m.refreshRows()
		return m, m.waitOverlay()

	case savedMsg:
		if msg.err != nil {
			m.setStatus(msg.err, "")
			return m, nil
		}
		m.mode = modeList
		m.setStatus(nil, fmt.Sprintf("%s %s", msg.verb, msg.user.Name))
		m.refreshRows()
		return m, nil

	case deletedMsg:
		m.removing = 0
		m.setStatus(msg.err, "User deleted")
		m.refreshRows()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeForm:
			return m.updateForm(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.mode = modeSearch
		m.table.Blur()
		return m, m.search.Focus()
	case "esc":
		m.search.SetValue("")
		m.overlay = m.searcher.Clear()
		m.refreshRows()
		return m, nil
	case "r":
		return m, m.fetchInitial()
	case "n":
		m.mode = modeForm
		m.form = newUserForm(0, users.Input{})
		return m, textinput.Blink
	case "e", "enter":
		if user, ok := m.selected(); ok {
			m.mode = modeForm
			m.form = newUserForm(user.ID, users.Input{Name: user.Name, Email: user.Email})
			return m, textinput.Blink
		}
		return m, nil
	case "d":
		if user, ok := m.selected(); ok && !m.store.IsDeleting(user.ID) {
			m.mode = modeConfirm
			m.confirmID = user.ID
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	more := m.maybeLoadMore()
	return m, tea.Batch(cmd, more)
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.search.SetValue("")
		m.search.Blur()
		m.table.Focus()
		m.mode = modeList
		m.overlay = m.searcher.Clear()
		m.refreshRows()
		return m, nil
	case "enter":
		m.search.Blur()
		m.table.Focus()
		m.mode = modeList
		searcher := m.searcher
		return m, func() tea.Msg {
			searcher.Submit()
			return nil
		}
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != before {
		m.searcher.Input(m.search.Value())
		if strings.TrimSpace(m.search.Value()) == "" {
			m.overlay = m.searcher.Snapshot()
			m.refreshRows()
		}
	}
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		return m, nil
	case "tab", "shift+tab", "down", "up":
		m.form.cycle()
		return m, nil
	case "enter":
		in := m.form.input()
		m.form.errs = users.Validate(in)
		if !m.form.errs.Valid() {
			return m, nil
		}
		return m, m.save(m.form.editing, in)
	}
	var cmd tea.Cmd
	m.form.inputs[m.form.focus], cmd = m.form.inputs[m.form.focus].Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.confirmID
	m.mode = modeList
	m.confirmID = 0
	switch msg.String() {
	case "y", "Y":
		m.removing = id
		m.refreshRows()
		return m, m.remove(id)
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("User Management Dashboard"))
	b.WriteString("\n")
	if m.mode == modeSearch || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	b.WriteString(m.summary())
	b.WriteString("\n")
	b.WriteString(m.styles.Panel.Render(m.table.View()))
	b.WriteString("\n")

	switch m.mode {
	case modeForm:
		b.WriteString(m.formView())
	case modeConfirm:
		b.WriteString(m.styles.Prompt.Render(fmt.Sprintf("Delete user #%d? (y/n)", m.confirmID)))
		b.WriteString("\n")
	}

	if m.status != "" {
		style := m.styles.Success
		if m.statusErr {
			style = m.styles.Error
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Help.Render(m.help()))
	return b.String()
}

func (m Model) summary() string {
	if m.overlay.Active() {
		switch {
		case m.overlay.Phase == users.SearchSearching:
			return m.styles.Muted.Render("Searching...")
		case m.overlay.Err != nil:
			return m.styles.Error.Render(m.overlay.Err.Error())
		case m.overlay.Notice != "":
			return m.styles.Notice.Render(m.overlay.Notice)
		case m.overlay.NoMatches():
			return m.styles.Muted.Render("No matches found")
		}
		return m.styles.Muted.Render(fmt.Sprintf("%d result(s) for %q", len(m.overlay.Users), m.overlay.Query))
	}
	state := m.store.Snapshot()
	line := fmt.Sprintf("Showing %d of %d", len(state.Users), state.Cursor.Total)
	if state.Cursor.Total < 0 {
		line = fmt.Sprintf("Showing %d", len(state.Users))
	}
	if state.Loading {
		line += " (loading...)"
	} else if state.Cursor.HasMore {
		line += " (scroll for more)"
	}
	return m.styles.Muted.Render(line)
}

func (m Model) formView() string {
	title := "Add user"
	if m.form.editing != 0 {
		title = fmt.Sprintf("Edit user #%d", m.form.editing)
	}
	errs := [2]string{m.form.errs.Name, m.form.errs.Email}
	var b strings.Builder
	b.WriteString(m.styles.Prompt.Render(title))
	b.WriteString("\n")
	for i := range m.form.inputs {
		b.WriteString(m.form.inputs[i].View())
		if errs[i] != "" {
			b.WriteString("  ")
			b.WriteString(m.styles.Error.Render(errs[i]))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) help() string {
	switch m.mode {
	case modeSearch:
		return "type to search  enter: search now  esc: clear"
	case modeForm:
		return "tab: next field  enter: save  esc: cancel"
	case modeConfirm:
		return "y: delete  any other key: cancel"
	}
	return "↑/↓: move  /: search  n: new  e: edit  d: delete  r: reload  q: quit"
}

func (m *Model) setStatus(err error, ok string) {
	if err != nil {
		m.status = shared.UserSafeMessage(err)
		m.statusErr = true
		return
	}
	m.status = ok
	m.statusErr = false
}

func (m Model) visibleUsers() []users.User {
	if m.overlay.Active() {
		return m.overlay.Users
	}
	return m.store.Snapshot().Users
}

func (m Model) selected() (users.User, bool) {
	list := m.visibleUsers()
	i := m.table.Cursor()
	if i < 0 || i >= len(list) {
		return users.User{}, false
	}
	return list[i], true
}

// refreshRows rebuilds the table from the overlay or the store and re-arms
// the scroll sentinel on the last row.
func (m *Model) refreshRows() {
	list := m.visibleUsers()
	rows := make([]table.Row, 0, len(list))
	for _, u := range list {
		mark := ""
		if u.ID == m.removing || m.store.IsDeleting(u.ID) {
			mark = "deleting"
		}
		rows = append(rows, table.Row{strconv.FormatInt(u.ID, 10), u.Name, u.Email, mark})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}

	if !m.overlay.Active() && m.store.HasMore() && len(list) > 0 {
		m.observer.Observe(rowKey(list[len(list)-1]))
	} else {
		m.observer.Observe("")
	}
}

// maybeLoadMore reports the last row as visible once the cursor reaches it.
func (m *Model) maybeLoadMore() tea.Cmd {
	list := m.visibleUsers()
	if m.loadingMore || len(list) == 0 || m.table.Cursor() != len(list)-1 {
		return nil
	}
	if !m.observer.Visible(rowKey(list[len(list)-1])) {
		return nil
	}
	m.loadingMore = true
	store, ctx := m.store, m.ctx
	return func() tea.Msg {
		return loadedMsg{err: store.LoadMore(ctx)}
	}
}

func (m Model) fetchInitial() tea.Cmd {
	store, ctx := m.store, m.ctx
	return func() tea.Msg {
		return loadedMsg{err: store.FetchInitial(ctx)}
	}
}

func (m Model) waitOverlay() tea.Cmd {
	ch := m.overlays
	return func() tea.Msg {
		o, ok := <-ch
		if !ok {
			return nil
		}
		return overlayMsg(o)
	}
}

func (m Model) save(id int64, in users.Input) tea.Cmd {
	store, ctx := m.store, m.ctx
	return func() tea.Msg {
		if id == 0 {
			user, err := store.Create(ctx, in)
			return savedMsg{verb: "Added", user: user, err: err}
		}
		user, err := store.Update(ctx, id, in)
		return savedMsg{verb: "Updated", user: user, err: err}
	}
}

func (m Model) remove(id int64) tea.Cmd {
	store, ctx := m.store, m.ctx
	return func() tea.Msg {
		return deletedMsg{id: id, err: store.Remove(ctx, id)}
	}
}

func rowKey(u users.User) string {
	return strconv.FormatInt(u.ID, 10)
}
