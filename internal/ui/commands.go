package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"customerterm/internal/customers"
	"customerterm/internal/storage"
)

type customerImporter interface {
	ImportCustomersCSV(ctx context.Context, r io.Reader, defaultCreator string, loc *time.Location) (storage.ImportResult, error)
}

type loadedMsg struct {
	refresh bool
	err     error
}

type createdMsg struct {
	err error
}

type dialedMsg struct {
	customer customers.Customer
	dialed   bool
	err      error
}

type publishedMsg struct {
	kind     customers.OutcomeKind
	customer customers.Customer
	err      error
}

type importedMsg struct {
	result storage.ImportResult
	err    error
}

type outcomeMsg struct {
	outcome customers.Outcome
}

type outcomesClosedMsg struct{}

func loadCmd(coord *customers.Coordinator, refresh bool) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		if refresh {
			err = coord.Refresh(ctx)
		} else {
			err = coord.Load(ctx)
		}
		return loadedMsg{refresh: refresh, err: err}
	}
}

func createCmd(coord *customers.Coordinator) tea.Cmd {
	return func() tea.Msg {
		return createdMsg{err: coord.Create(context.Background())}
	}
}

func dialCmd(coord *customers.Coordinator, cust customers.Customer) tea.Cmd {
	return func() tea.Msg {
		dialed, err := coord.Dial(context.Background(), cust.ID)
		return dialedMsg{customer: cust, dialed: dialed, err: err}
	}
}

func publishSaveCmd(coord *customers.Coordinator, cust customers.Customer) tea.Cmd {
	return func() tea.Msg {
		err := coord.PublishSave(context.Background(), cust)
		kind := customers.Updated
		if cust.IsNew() {
			kind = customers.Created
		}
		return publishedMsg{kind: kind, customer: cust, err: err}
	}
}

func publishDeleteCmd(coord *customers.Coordinator, cust customers.Customer) tea.Cmd {
	return func() tea.Msg {
		err := coord.PublishDelete(context.Background(), cust)
		return publishedMsg{kind: customers.Deleted, customer: cust, err: err}
	}
}

// importCmd writes the CSV at path through the coordinator so it never
// overlaps a save or delete, and the list is reloaded afterwards.
func importCmd(coord *customers.Coordinator, importer customerImporter, path, creator string, loc *time.Location) tea.Cmd {
	return func() tea.Msg {
		file, err := os.Open(path)
		if err != nil {
			return importedMsg{err: fmt.Errorf("open file: %w", err)}
		}
		defer file.Close()

		var result storage.ImportResult
		err = coord.Import(context.Background(), func(ctx context.Context) error {
			var err error
			if result, err = importer.ImportCustomersCSV(ctx, file, creator, loc); err != nil {
				return fmt.Errorf("import csv: %w", err)
			}
			return nil
		})
		return importedMsg{result: result, err: err}
	}
}

// waitForOutcome blocks until the coordinator reports a processed request.
// The model re-issues it after every outcome.
func waitForOutcome(ch <-chan customers.Outcome) tea.Cmd {
	return func() tea.Msg {
		out, ok := <-ch
		if !ok {
			return outcomesClosedMsg{}
		}
		return outcomeMsg{outcome: out}
	}
}

func isBusy(err error) bool {
	return errors.Is(err, customers.ErrBusy)
}
