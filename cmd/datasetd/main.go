// datasetd: dataset collection server. Receives (image, label) uploads from
// capture devices and stores them in a YOLO train/val/test layout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-yolocapture/internal/config"
	"github.com/teslashibe/go-yolocapture/internal/log"
	"github.com/teslashibe/go-yolocapture/pkg/dataset"
	"github.com/teslashibe/go-yolocapture/pkg/protocol"
	"github.com/teslashibe/go-yolocapture/pkg/relay"
	"github.com/teslashibe/go-yolocapture/pkg/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "datasetd:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	var (
		port    = flag.Int("port", config.Int("PORT", 8000), "HTTP server port")
		root    = flag.String("data", config.String("DATASET_ROOT", "datasets"), "Dataset root directory")
		origins = flag.String("cors", config.String("CORS_ORIGINS", ""), "Allowed CORS origins (empty = all)")
		limit   = flag.Int("body-limit", config.Int("BODY_LIMIT", server.DefaultBodyLimit), "Maximum upload size in bytes")
		level   = flag.String("log-level", config.String("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
		access  = flag.Bool("access-log", config.Bool("ACCESS_LOG", false), "Log every request")
	)
	flag.Parse()

	log.Init(*level)
	logger := log.Component("datasetd")

	store, err := dataset.NewStore(*root, dataset.WithLogger(log.L()))
	if err != nil {
		return err
	}

	devices := relay.New(log.L())
	devices.OnState(func(deviceID string, st *protocol.StateData) {
		logger.Debug("device state", "device", deviceID, "capturing", st.Capturing, "count", st.Count, "dataset", st.Dataset)
	})

	srv, err := server.New(store,
		server.WithAddr(fmt.Sprintf(":%d", *port)),
		server.WithBodyLimit(*limit),
		server.WithCORSOrigins(*origins),
		server.WithRequestLog(*access),
		server.WithRelay(devices),
		server.WithLogger(log.L()),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(ctx) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
