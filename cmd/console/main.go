package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/amoisekai/engine/internal/app"
	"github.com/amoisekai/engine/internal/config"
	"github.com/amoisekai/engine/internal/logger"
	"github.com/amoisekai/engine/internal/services"
	"github.com/amoisekai/engine/pkg/story"
)

var (
	online  bool
	mockLLM bool
	logPath string
	tone    string
	userID  string
)

var rootCmd = &cobra.Command{
	Use:   "amoisekai-console",
	Short: "Play Amoisekai in the terminal",
	Long:  `Runs the soul forge and the chapter loop in-process. By default everything is kept in memory; --online uses the configured Redis and SQLite stores.`,
	RunE:  run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&online, "online", false, "use the configured Redis and prose stores")
	rootCmd.Flags().BoolVar(&mockLLM, "mock-llm", false, "run without a model; every node uses its fallback")
	rootCmd.Flags().StringVar(&logPath, "log", "", "write engine logs to this file")
	rootCmd.Flags().StringVar(&tone, "tone", string(story.ToneDark), "story tone")
	rootCmd.Flags().StringVar(&userID, "user", "", "user id (random when empty)")
}

func run(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.Discard()
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() {
			_ = f.Close() // Ignore error in defer
		}()
		log = logger.New(cfg, f)
	}

	opts := app.Options{Offline: !online}
	if mockLLM {
		m := services.NewMockLLMAPI()
		m.SetChatError(errors.New("model disabled"))
		opts.LLM = m
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	a, err := app.Build(ctx, cfg, log, opts)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer func() {
		_ = a.Close()
	}()

	if userID == "" {
		userID = uuid.NewString()
	}
	p := tea.NewProgram(NewConsoleUI(a.Engine, a.Store, userID, story.Tone(tone)),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
