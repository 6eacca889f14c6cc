package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Zereker/framer"
	"github.com/Zereker/framer/internal/config"
	"github.com/Zereker/framer/internal/logging"
	"github.com/Zereker/framer/internal/metrics"
)

func main() {
	logger := logging.Init("frameserver")

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load server config")
	}

	strategy, _ := framer.ParseStrategy(cfg.Strategy)
	mode, _ := config.ParseMode(cfg.Mode)

	pool, err := framer.NewPool(strategy, cfg.Concurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create buffer pool")
	}
	defer pool.Close()

	adapter := logging.Adapter{L: logger}
	opts := []framer.Option{
		framer.PoolOption(pool),
		framer.ModeOption(mode),
		framer.NoBufferingOption(cfg.NoBuffering),
		framer.LegacyPrefixOption(cfg.LegacyPrefix),
		framer.ReadTimeoutOption(cfg.ReadTimeout),
		framer.LoggerOption(adapter),
	}

	if cfg.MetricsAddr != "" {
		collector := metrics.New(strategy.Name)
		opts = append(opts, framer.ObserverOption(collector))
		go func() {
			if err := collector.Serve(cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server stopped")
			}
		}()
	}

	handler := framer.NewFrameHandler(func() framer.Sink {
		return framer.NewSink(cfg.OutputFile)
	}, opts...).OnConnectionDone(func(r framer.Report) {
		if r.Err == nil {
			fmt.Printf("Received %d objects\n", r.Frames)
		}
	})

	server, err := framer.New(&net.TCPAddr{Port: cfg.Port},
		framer.ServerLoggerOption(adapter),
		framer.ServerReceiveBufferOption(cfg.ReceiveBuf),
		framer.ServerSchedulerOption(framer.Concurrent(cfg.Concurrency)),
	)
	if err != nil {
		log.Fatal().Err(err).Int("port", cfg.Port).Msg("failed to listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Int("port", cfg.Port).
		Str("strategy", strategy.Name).
		Str("mode", mode.String()).
		Str("output", cfg.OutputFile).
		Msg("frameserver listening")

	if err := server.Serve(ctx, handler); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func loadConfig(args []string) (config.ServerConfig, error) {
	fs := flag.NewFlagSet("frameserver", flag.ContinueOnError)
	path := fs.String("config", "", "path to a TOML config file")
	def := config.DefaultServerConfig()
	port := fs.Int("port", def.Port, "listening port")
	ofile := fs.String("ofile", def.OutputFile, "persist each frame to this file (empty discards)")
	rcvbuf := fs.Int("so-rcvbuf", def.ReceiveBuf, "SO_RCVBUF hint for the listening socket")
	mode := fs.String("mode", def.Mode, "channel or stream")
	noBuf := fs.Bool("no-buffering", def.NoBuffering, "read the socket without bufio in stream mode")
	legacy := fs.Bool("legacy-prefix", def.LegacyPrefix, "decode length prefixes the legacy way")
	conc := fs.Int("concurrency", def.Concurrency, "connections served at once")
	if err := fs.Parse(args); err != nil {
		return config.ServerConfig{}, err
	}

	cfg := def
	if *path != "" {
		loaded, err := config.LoadServerConfig(*path)
		if err != nil {
			return config.ServerConfig{}, err
		}
		cfg = loaded
	}

	// explicit flags win over the file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "ofile":
			cfg.OutputFile = *ofile
		case "so-rcvbuf":
			cfg.ReceiveBuf = *rcvbuf
		case "mode":
			cfg.Mode = *mode
		case "no-buffering":
			cfg.NoBuffering = *noBuf
		case "legacy-prefix":
			cfg.LegacyPrefix = *legacy
		case "concurrency":
			cfg.Concurrency = *conc
		}
	})
	if fs.NArg() > 0 {
		cfg.Strategy = fs.Arg(0)
	}

	return cfg, cfg.Validate()
}
