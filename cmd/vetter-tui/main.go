package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"vetter/internal/chat"
	"vetter/internal/completion"
	"vetter/internal/config"
	"vetter/internal/logging"
	"vetter/internal/models"
	"vetter/internal/session"
	"vetter/internal/tui"
)

func main() {
	cfg, err := config.Load(os.Getenv("VETTER_CONFIG"))
	if err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			fmt.Fprint(os.Stderr, config.SetupInstructions)
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		}
		os.Exit(1)
	}

	logger, err := logging.NewFile(os.Getenv("VETTER_TUI_LOG"), cfg.BasicConfig.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	completer, err := completion.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init completion client: %v\n", err)
		os.Exit(1)
	}
	service := chat.NewService(completer, cfg.Retry.Policy(), logger)
	sessions := session.NewStore(cfg.SessionTTL(), logger, models.SystemMessage(cfg.Chat.SystemPrompt))

	program := tea.NewProgram(
		tui.New(ctx, service, sessions.Create(), cfg.Chat.Title),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "vetter-tui: %v\n", err)
		os.Exit(1)
	}
}
