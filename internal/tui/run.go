package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/datetally/internal/gate"
)

// Run launches the interactive calendar and blocks until it exits. Pending
// edits that have not settled are dropped.
func Run(m *Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(m.ctx)}, opts...)
	p := tea.NewProgram(m, opts...)
	m.send = p.Send
	_, err := p.Run()
	m.buffer.Close()
	m.buffer.Wait()
	if err != nil {
		return fmt.Errorf("run calendar: %w", err)
	}
	if m.reauth {
		return gate.ErrReauthRequired
	}
	return nil
}
