package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/ironsheep/route-vision/internal/config"
	"github.com/ironsheep/route-vision/internal/httpapi"
	"github.com/ironsheep/route-vision/internal/inference"
	"github.com/ironsheep/route-vision/internal/logging"
	"github.com/ironsheep/route-vision/internal/ocr"
	"github.com/ironsheep/route-vision/internal/pipeline"
	"github.com/ironsheep/route-vision/internal/server"
	"github.com/ironsheep/route-vision/internal/store"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

func usage() {
	fmt.Println("route-vision - detection validation node for a single camera")
	fmt.Println()
	fmt.Println("Usage: route-vision [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve            Serve the REST API (default)")
	fmt.Println("  mcp              Serve MCP over stdin/stdout")
	fmt.Println("  version          Print version information")
	fmt.Println("  help             Print this help message")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -c, --config     YAML config file (watched for vest range changes)")
	fmt.Println("      --addr       Override http.addr")
	fmt.Println()
	fmt.Println("Every config key can be set from the environment, e.g.")
	fmt.Println("  ROUTE_VISION_DETECTOR_ENDPOINT=http://detector:8500")
	fmt.Println("  ROUTE_VISION_LOG_LEVEL=debug")
}

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		switch a := args[0]; {
		case a == "--version" || a == "-v" || a == "--help" || a == "-h":
			cmd, args = a, args[1:]
		case !strings.HasPrefix(a, "-"):
			cmd, args = a, args[1:]
		}
	}

	switch cmd {
	case "--version", "-v", "version":
		fmt.Printf("route-vision %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		usage()
		return
	case "serve", "mcp":
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	fs := pflag.NewFlagSet(cmd, pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "YAML config file")
	addr := fs.String("addr", "", "override http.addr")
	fs.Parse(args)

	if err := run(cmd, *configPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "route-vision: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd, configPath, addr string) error {
	cfg, v, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}

	// Logs go to stderr; stdout carries the MCP protocol.
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	log.Info().Str("version", Version).Str("commit", GitCommit).Str("command", cmd).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, cleanup, err := buildNode(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	if configPath != "" {
		config.Watch(v, log, func(c *config.Config) {
			r, err := c.VestRange()
			if err != nil {
				return
			}
			if err := node.SetVestRange(r); err != nil {
				log.Error().Err(err).Msg("failed to apply vest range")
			}
		})
	}

	if cfg.Image.WatchDir != "" {
		src, err := pipeline.NewDirSource(cfg.Image.WatchDir, node, log)
		if err != nil {
			return err
		}
		go func() {
			if err := src.Run(ctx); err != nil {
				log.Error().Err(err).Msg("frame source stopped")
			}
		}()
	}

	switch cmd {
	case "mcp":
		return serveMCP(ctx, node, log)
	default:
		return serveHTTP(ctx, cfg, node, log)
	}
}

// buildNode wires the node and its backends. cleanup releases them; on error
// everything opened so far is already released.
func buildNode(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pipeline.Node, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	reader, err := ocr.NewReader(cfg.OCR, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start OCR: %w", err)
	}
	closers = append(closers, func() { reader.Close() })

	detector := inference.NewClient(cfg.Inference(), log)
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := detector.HealthCheck(hctx); err != nil {
		// The service may come up after us; requests fail until it does.
		log.Warn().Err(err).Str("endpoint", cfg.Detector.Endpoint).Msg("detection service not ready")
	}
	cancel()

	var history pipeline.History
	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		history = db
		log.Info().Str("path", cfg.Store.Path).Msg("detection history enabled")
	}

	vest, _ := cfg.VestRange()
	routes, _ := cfg.DetectionRoutes()
	style, _ := cfg.Style()

	node, err := pipeline.New(pipeline.Config{
		Resize:     cfg.Image.Resize,
		Flip:       cfg.Image.Flip,
		Vest:       vest,
		Routes:     routes,
		Confidence: cfg.Detector.Confidence,
		Style:      style,
	}, pipeline.Deps{
		Detector: detector,
		Reader:   reader,
		History:  history,
		Log:      log,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return node, cleanup, nil
}

func serveHTTP(ctx context.Context, cfg *config.Config, node *pipeline.Node, log zerolog.Logger) error {
	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(httpapi.NewHandler(node, log), cfg.HTTP.CORSOrigins, log)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Streams end when the node shuts down.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// serveMCP returns when stdin closes or on signal; a blocked stdin read is
// abandoned in the latter case.
func serveMCP(ctx context.Context, node *pipeline.Node, log zerolog.Logger) error {
	srv := server.New(node, Version, log)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
