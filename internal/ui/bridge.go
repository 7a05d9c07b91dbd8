package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"customerterm/internal/customers"
)

// bridge lets the coordinator drive the UI from command goroutines. Every
// call turns into a message delivered to the running program.
type bridge struct {
	send func(tea.Msg)
}

type pushDetailMsg struct {
	screen customers.DetailScreen
}

type confirmRequestMsg struct {
	prompt customers.Prompt
	reply  chan bool
}

type phaseMsg struct {
	phase customers.Phase
}

// Push shows the detail screen.
func (b bridge) Push(_ context.Context, screen customers.DetailScreen) error {
	b.send(pushDetailMsg{screen: screen})
	return nil
}

// Confirm shows prompt and waits for the user's answer.
func (b bridge) Confirm(ctx context.Context, prompt customers.Prompt) (bool, error) {
	reply := make(chan bool, 1)
	b.send(confirmRequestMsg{prompt: prompt, reply: reply})
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (b bridge) phaseChanged(p customers.Phase) {
	b.send(phaseMsg{phase: p})
}
