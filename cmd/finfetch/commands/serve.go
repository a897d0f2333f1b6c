package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/finfetch/internal/api"
	"github.com/wonny/finfetch/internal/api/handlers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                 - Health check
  GET  /api/sources            - 사용 가능한 소스 목록
  GET  /api/screen             - 스크리닝 (?symbols=A,B&days=365&format=json|csv)
  POST /api/data/collect       - 수집 후 스냅샷 반환
  POST /api/analyze/{kind}     - 스냅샷 분석 (performance|risk|portfolio)
  GET  /api/ranking            - 저장된 랭킹 (?date=YYYY-MM-DD&limit=N)
  GET  /api/screening          - 저장된 스크리닝 결과

Example:
  go run ./cmd/finfetch serve
  go run ./cmd/finfetch serve --addr :9000`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (기본: API_ADDR 또는 :8089)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Override address if flag is set
	if serveAddr != "" {
		a.cfg.APIAddr = serveAddr
	}

	dataHandler := handlers.NewDataHandler(a.orchestrator, a.registry, a.logger)
	rankingHandler := handlers.NewRankingHandler(a.repo, a.logger)
	router := api.NewRouter(dataHandler, rankingHandler, a.logger)
	server := api.New(a.cfg, a.logger, router)

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	PrintSuccess(fmt.Sprintf("Server running on %s", a.cfg.APIAddr))
	PrintInfo("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	case <-quit:
	}

	a.logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.logger.Info("Server stopped")
	return nil
}
