// Command httpengine-demo runs a minimal HTTP/1.1 server over
// streamio.Conn, demonstrating the full request/response cycle over a
// plain net.Listener accept loop with one goroutine per connection.
package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/mirodin/httpengine/http1"
	"github.com/mirodin/httpengine/httpmetrics"
	"github.com/mirodin/httpengine/streamio"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "httpengine-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	// A config file's values become the defaults every flag starts
	// from, so an explicit flag always wins over the file, and the
	// file always wins over DefaultConfig. --config itself has to be
	// read before the rest of the flags are bound, hence the small
	// first pass below.
	configFlags := pflag.NewFlagSet("httpengine-demo-config", pflag.ContinueOnError)
	var configPath string
	configFlags.StringVar(&configPath, "config", "", "path to a YAML config file")
	configFlags.ParseErrorsWhitelist.UnknownFlags = true
	if err := configFlags.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg := DefaultConfig()
	if err := loadConfigFile(&cfg, configPath); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}

	pflag.StringVar(&configPath, "config", configPath, "path to a YAML config file")
	cfg.AddFlags(pflag.CommandLine)
	pflag.Parse()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	registry := prometheus.NewRegistry()
	metrics := httpmetrics.New(registry)

	strategy := http1.PoolStrategyStandard
	if cfg.PoolStrategy == "percpu" {
		strategy = http1.PoolStrategyPerCPU
	}

	parserCfg := http1.Config{
		WorkspaceSize:       cfg.WorkspaceSize,
		BodyLimit:           cfg.BodyLimitBytes,
		ApplyGzipDecoder:    cfg.ApplyGzip,
		ApplyDeflateDecoder: cfg.ApplyDeflate,
		ApplyBrotliDecoder:  cfg.ApplyBrotli,
		Metrics:             metrics,
	}
	serializerCfg := http1.SerializerConfig{
		WorkspaceSize:       cfg.WorkspaceSize,
		ApplyGzipEncoder:    cfg.ApplyGzip,
		ApplyDeflateEncoder: cfg.ApplyDeflate,
		ApplyBrotliEncoder:  cfg.ApplyBrotli,
		Metrics:             metrics,
	}
	parserPool := http1.NewParserPool(parserCfg, strategy, metrics)
	serializerPool := http1.NewSerializerPool(serializerCfg, strategy, metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddr, err)
	}
	defer ln.Close()
	logger.Info().Str("addr", cfg.ListenAddr).Msg("httpengine-demo listening")

	connCfg := streamio.ConnConfig{
		KeepAliveTimeout: cfg.KeepAliveTimeout,
		MaxRequests:      cfg.MaxRequests,
		ParserConfig:     parserCfg,
		SerializerConfig: serializerCfg,
		ParserPool:       parserPool,
		SerializerPool:   serializerPool,
		Metrics:          metrics,
		Logger:           logger,
	}

	for {
		nc, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		conn := streamio.NewConn(nc, connCfg, echoHandler)
		go func() {
			if err := conn.Serve(); err != nil {
				logger.Debug().Err(err).Msg("connection ended")
			}
		}()
	}
}
