package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP analysis server",
	Long:  `Starts the REST and WebSocket API for issue search and analysis, with Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		orch, err := a.pipeline()
		if err != nil {
			return err
		}

		srvCfg := a.cfg.Server
		if cmd.Flags().Changed("port") {
			srvCfg.Port = serverPort
		}
		srv := server.New(srvCfg, a.cfg.Pipeline, orch, a.issues, a.runs, a.logger)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		total, embedded, err := a.issues.Count(context.Background())
		if err != nil {
			return fmt.Errorf("counting issues: %w", err)
		}
		fmt.Fprintf(os.Stderr, "aidebug server %s starting on port %d\n", Version, srvCfg.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", a.cfg.DatabasePath)
		fmt.Fprintf(os.Stderr, "  Issues: %d (%d embedded)\n", total, embedded)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (default server.port)")
	rootCmd.AddCommand(serverCmd)
}
