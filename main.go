package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sadopc/sprintboard/internal/board"
	"github.com/sadopc/sprintboard/internal/config"
	"github.com/sadopc/sprintboard/internal/entity"
	"github.com/sadopc/sprintboard/internal/store"
	"github.com/sadopc/sprintboard/internal/tui"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

type globalFlags struct {
	configPath string
	dbPath     string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:           "sprintboard",
		Short:         "Personal sprint board with a daily journal",
		Long:          "sprintboard tracks tasks across a three-column board, plans them into tracks and sprints, and keeps a daily journal. Run without arguments to open the terminal UI.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file (default <user config dir>/sprintboard/config.yaml)")
	cmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "path to the SQLite database (overrides the config file)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newTasksCmd(&flags))
	cmd.AddCommand(newStatsCmd(&flags))
	cmd.AddCommand(newExportCmd(&flags))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sprintboard %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// env is everything a command needs once the config is read and the board is loaded.
type env struct {
	cfg     *config.Config
	store   *store.Store
	board   *board.Board
	logger  *slog.Logger
	logFile *os.File
}

func (e *env) Close() {
	e.store.Close()
	if e.logFile != nil {
		e.logFile.Close()
	}
}

func openEnv(ctx context.Context, flags globalFlags) (*env, error) {
	path := flags.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("locate config: %w", err)
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flags.dbPath != "" {
		cfg.Database.Path = flags.dbPath
	}

	logger, logFile, err := openLogger(cfg)
	if err != nil {
		return nil, err
	}

	s, err := store.New(cfg.Database.Path, store.WithLogger(logger))
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}

	b := board.New(entity.NewStore(), s,
		board.WithLogger(logger),
		board.WithFailurePolicy(cfg.FailurePolicy()),
		board.WithStrictSprintDates(cfg.Board.StrictSprintDates),
		board.WithSprintLength(s.IntSetting(store.SettingSprintLength, 14)),
	)
	e := &env{cfg: cfg, store: s, board: b, logger: logger, logFile: logFile}

	loadCtx, cancel := context.WithTimeout(ctx, cfg.Board.CommitTimeout)
	defer cancel()
	if err := b.Load(loadCtx); err != nil {
		e.Close()
		return nil, err
	}
	logger.Debug("board ready", "db", cfg.Database.Path, "policy", cfg.FailurePolicy())
	return e, nil
}

// openLogger writes text logs to the configured file; the terminal belongs to the UI.
func openLogger(cfg *config.Config) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.LogLevel()})
	return slog.New(h), f, nil
}

func runTUI(cmd *cobra.Command, flags globalFlags) error {
	e, err := openEnv(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer e.Close()

	app := tui.NewApp(e.store, e.board, tui.Options{
		CommitTimeout: e.cfg.Board.CommitTimeout,
		Logger:        e.logger,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// commitContext bounds a synchronous gateway round trip from the CLI.
func (e *env) commitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.Board.CommitTimeout)
}

func today() entity.Date { return entity.DateOf(time.Now()) }

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
