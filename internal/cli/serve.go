package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aidingjing/rain-gauge-api/internal/observability"
	"github.com/aidingjing/rain-gauge-api/internal/server"
)

// ServeCmd 启动 HTTP 服务
func ServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *configPath)
		},
	}
}

func runServe(cmd *cobra.Command, configPath string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, configPath, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.NewServer(a.cfg, a.svc, server.Options{
		Logger:    a.logger.Named("http"),
		Metrics:   a.metrics,
		ExportDir: a.exportDir(),
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "服务已启动: http://localhost%s\n", srv.Addr())

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("服务启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", zap.Duration("timeout", a.cfg.Server.ShutdownTimeout.Std()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务关闭失败: %w", err)
	}
	return nil
}
