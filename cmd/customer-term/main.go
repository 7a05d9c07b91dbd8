package main

import (
	"context"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"customerterm/internal/config"
	"customerterm/internal/storage"
	"customerterm/internal/ui"
)

func main() {
	ctx := context.Background()

	cfgStore, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// The TUI owns the terminal, so logs go to a file or nowhere.
	logger := log.New(io.Discard, "", 0)
	if path := cfgStore.Config.LogPath; path != "" {
		f, err := tea.LogToFile(path, "customer-term")
		if err != nil {
			log.Fatalf("open log: %v", err)
		}
		defer f.Close()
		logger = log.Default()
	}

	db, err := storage.Open(ctx, cfgStore.Config.DBPath)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer db.Close()
	logger.Printf("using database %s", db.Path())

	program := ui.NewProgram(db, cfgStore, logger)
	if err := program.Start(); err != nil {
		log.Println("program terminated:", err)
		os.Exit(1)
	}
}
