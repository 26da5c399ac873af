package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dukerupert/indivisible/internal/assistant"
	"github.com/dukerupert/indivisible/internal/config"
	"github.com/dukerupert/indivisible/internal/database"
	"github.com/dukerupert/indivisible/internal/logging"
	"github.com/dukerupert/indivisible/internal/push"
	"github.com/dukerupert/indivisible/internal/server"
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "indivisible",
	Short: "Shared household task lists with the Indi assistant",
	Long: `Indivisible keeps a household's lists and tasks in sync between members
and lets them chat with Indi, an assistant that can create, complete and
assign tasks on their behalf.

Configuration is read from INDIVISIBLE_* environment variables; flags
override them.`,
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	rootCmd.AddCommand(serveCmd(), askCmd(), vapidKeysCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.String("db", "indivisible.db", "SQLite database path")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	_ = v.BindPFlag("db_path", flags.Lookup("db"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log_format", flags.Lookup("log-format"))
}

// load reads configuration and sets up the default logger.
func load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat), nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket feed and reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}

			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			srv := server.New(db, cfg, assistant.NewAnthropicCompleter(cfg.Anthropic()), logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			srv.Start(ctx)

			httpServer := &http.Server{
				Addr:        cfg.Addr(),
				Handler:     srv.Router(),
				ReadTimeout: 10 * time.Second,
				// The assistant endpoint waits on the completion service.
				WriteTimeout: cfg.CompletionTimeout + 30*time.Second,
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server listening", "addr", cfg.Addr(), "db", cfg.DBPath, "push", cfg.Push().Enabled())
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			srv.Stop()
			return nil
		},
	}
	cmd.Flags().Int("port", 8080, "HTTP port")
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

func askCmd() *cobra.Command {
	var householdID, userID string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Run one assistant turn for a household member and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := assistant.NewService(assistant.NewStores(db), assistant.NewAnthropicCompleter(cfg.Anthropic()), nil,
				logger.With("component", "assistant"), assistant.Options{Cooldown: cfg.AssistantCooldown})
			resp, err := svc.Respond(cmd.Context(), assistant.Request{
				HouseholdID:    householdID,
				UserID:         userID,
				MessageContent: args[0],
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			if resp.Skipped != "" {
				fmt.Printf("skipped: %s\n", resp.Skipped)
				return nil
			}
			fmt.Println(resp.Message.Content)
			if len(resp.ActionsExecuted) == 0 {
				return nil
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"#", "Action", "OK", "Task", "Error"})
			for i, r := range resp.ActionsExecuted {
				tw.AppendRow(table.Row{i + 1, r.Type, r.Success, r.TaskID, r.Error})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&householdID, "household", "", "household id")
	cmd.Flags().StringVar(&userID, "user", "", "id of the member speaking")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	_ = cmd.MarkFlagRequired("household")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func vapidKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for web push",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Printf("%s_VAPID_PUBLIC_KEY=%s\n", config.EnvPrefix, pub)
			fmt.Printf("%s_VAPID_PRIVATE_KEY=%s\n", config.EnvPrefix, priv)
			return nil
		},
	}
}
