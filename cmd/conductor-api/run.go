package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	apiserver "github.com/paperkit/ocr-conductor/internal/api_server"
	"github.com/paperkit/ocr-conductor/internal/config"
	"github.com/paperkit/ocr-conductor/internal/controller"
	"github.com/paperkit/ocr-conductor/internal/docstore"
	handlers "github.com/paperkit/ocr-conductor/internal/handlers/v1"
	"github.com/paperkit/ocr-conductor/internal/ocr"
	"github.com/paperkit/ocr-conductor/internal/pool"
	"github.com/paperkit/ocr-conductor/internal/service"
	"github.com/paperkit/ocr-conductor/internal/store"
	"github.com/paperkit/ocr-conductor/internal/watchdog"
	"github.com/paperkit/ocr-conductor/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the conductor api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			zap.S().Fatalw("reading configuration", "error", err)
		}

		logger := log.InitLog(log.Level(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting conductor API service")
		defer zap.S().Info("Conductor API service stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		st := store.NewStore(db)
		defer st.Close()

		if err := st.InitialMigration(); err != nil {
			zap.S().Fatalw("running initial migration", "error", err)
		}

		docs := docstore.NewClient(cfg.Service.Docstore.URL, cfg.Service.Docstore.Token, cfg.Service.Docstore.FinishTag)
		engine := ocr.NewOllamaEngine(cfg.Service.OCR.RequestTimeout)
		serverPool := pool.New(cfg.Service.OCR.EndpointCooldown)

		ocrService := service.NewOCRService(st, docs, engine, serverPool, cfg.Service.Docstore.RunTag, cfg.Service.Docstore.FinishTag)
		settingsService := service.NewSettingsService(st)
		ctrl := controller.New(docs, ocrService, cfg.Service.Docstore.RunTag)
		wd := watchdog.New(st.Settings(), ctrl)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		go wd.Run(ctx)

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalw("creating listener", "error", err)
			}

			handler := handlers.NewHandler(ocrService, settingsService, ctrl, wd)
			server := apiserver.New(cfg, handler, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalw("running api server", "error", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalw("creating metrics listener", "error", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalw("running metrics server", "error", err)
			}
		}()

		<-ctx.Done()

		// give an in-flight run its safe point to stop at
		if err := ctrl.Stop(); err != nil && !errors.Is(err, controller.ErrInvalidState) {
			zap.S().Warnw("stopping active run", "error", err)
		}
		drain, cancelDrain := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelDrain()
		for ctrl.Busy() {
			select {
			case <-drain.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
		}
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
