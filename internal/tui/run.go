package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/odyssey-erp/userdash/internal/app"
	"github.com/odyssey-erp/userdash/internal/users"
)

// Run opens the terminal dashboard against the proxy named in cfg and blocks
// until the user quits or ctx ends.
func Run(ctx context.Context, cfg *app.ClientConfig) error {
	logger := app.NewFileLogger(cfg.LogFile)
	api := users.NewHTTPClient(cfg.ProxyURL, nil)
	store := users.NewStore(api, logger)
	searcher := users.NewSearcher(ctx, api, logger, cfg.SearchDebounce)
	defer searcher.Close()

	p := tea.NewProgram(New(ctx, store, searcher), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
