package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	deerflow "github.com/chansky6/deer-flow"
	"github.com/chansky6/deer-flow/client"
	"github.com/chansky6/deer-flow/engine"
	"github.com/chansky6/deer-flow/store"
)

func main() {
	root := &cobra.Command{
		Use:   "deer-flow",
		Short: "Deer-flow research workflow server",
		Long:  "Deer-flow runs streaming research workflows over HTTP, with durable event history and conversation metadata.",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newChatCmd())
	root.AddCommand(newHistoryCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the deer-flow server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Environment first, flags override.
			cfg := deerflow.ConfigFromEnv()
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr, _ = flags.GetString("addr")
			}
			if flags.Changed("checkpoint-saver") {
				cfg.CheckpointSaver, _ = flags.GetBool("checkpoint-saver")
			}
			if flags.Changed("database-url") {
				cfg.DatabaseURL, _ = flags.GetString("database-url")
			}
			if flags.Changed("run-retention") {
				cfg.RunRetention, _ = flags.GetDuration("run-retention")
			}
			if flags.Changed("cleanup-spec") {
				cfg.CleanupSpec, _ = flags.GetString("cleanup-spec")
			}

			level, _ := flags.GetString("log-level")
			format, _ := flags.GetString("log-format")
			logger := buildLogger(level, format)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := engine.Build(ctx, cfg, engine.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("build engine: %w", err)
			}
			if err := eng.Start(ctx); err != nil {
				return fmt.Errorf("start engine: %w", err)
			}

			<-ctx.Done()
			logger.Info("shutdown signal received")

			// The signal context is already cancelled; Stop bounds itself
			// with the configured shutdown timeout.
			if err := eng.Stop(context.Background()); err != nil {
				return fmt.Errorf("stop engine: %w", err)
			}
			return nil
		},
	}

	defaults := deerflow.DefaultConfig()
	cmd.Flags().String("addr", defaults.Addr, "HTTP listen address")
	cmd.Flags().Bool("checkpoint-saver", defaults.CheckpointSaver, "Enable durable persistence of events and conversations")
	cmd.Flags().String("database-url", "", "Backend connection URI (mongodb:// or postgresql://)")
	cmd.Flags().Duration("run-retention", defaults.RunRetention, "How long terminal runs stay tracked before the cleanup sweep")
	cmd.Flags().String("cleanup-spec", defaults.CleanupSpec, "Cron expression for the cleanup sweep")
	cmd.Flags().String("log-level", os.Getenv("DEERFLOW_LOG_LEVEL"), "Log level: debug|info|warn|error")
	cmd.Flags().String("log-format", os.Getenv("DEERFLOW_LOG_FORMAT"), "Log format: text|json")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply backend schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := deerflow.ConfigFromEnv()
			if cmd.Flags().Changed("database-url") {
				cfg.DatabaseURL, _ = cmd.Flags().GetString("database-url")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Unlike serve, an explicit migrate has no degraded mode: a
			// missing or unreachable backend is an error.
			st, err := store.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			if err := st.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
	cmd.Flags().String("database-url", "", "Backend connection URI (mongodb:// or postgresql://)")
	return cmd
}

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [query]",
		Short: "Send a research query to a running server and stream the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threadID, _ := cmd.Flags().GetString("thread")
			userID, _ := cmd.Flags().GetString("user")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := client.New(apiURL(), client.WithUserID(userID))
			st, err := c.ChatStream(ctx, threadID, args[0])
			if err != nil {
				return err
			}
			defer st.Close()

			for {
				frame, err := st.Next()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				chunk, err := frame.Chunk()
				if err != nil {
					return err
				}
				if chunk.Content != "" {
					fmt.Println(chunk.Content)
				}
			}
		},
	}
	cmd.Flags().String("thread", "", "Thread ID (the server mints one when empty)")
	cmd.Flags().String("user", "", "User ID sent with the request")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [thread-id]",
		Short: "Print a thread's persisted event history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			events, err := client.New(apiURL()).History(ctx, args[0])
			if err != nil {
				return err
			}
			for _, event := range events {
				// Events are stored as complete SSE frames with their
				// own trailing blank lines.
				fmt.Print(event)
			}
			return nil
		},
	}
}

func apiURL() string {
	if v := os.Getenv("DEERFLOW_API"); v != "" {
		return v
	}
	return "http://127.0.0.1:8000"
}

func buildLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
