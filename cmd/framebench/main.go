package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Zereker/framer"
	"github.com/Zereker/framer/internal/bench"
	"github.com/Zereker/framer/internal/config"
	"github.com/Zereker/framer/internal/logging"
)

func main() {
	logger := logging.Init("framebench")

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load bench config")
	}

	strategies, err := selectStrategies(cfg.Strategies)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid strategy")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter := logging.Adapter{L: logger}
	rec := bench.NewRecorder()
	run := func(ctx context.Context, addr string) error {
		h := bench.NewHarness(bench.Options{
			Addr:      addr,
			InputFile: cfg.InputFile,
			SendBuf:   cfg.SendBuf,
			NoDelay:   cfg.NoDelay,
		}, rec, adapter)

		size, err := h.Size()
		if err != nil {
			return err
		}
		log.Info().Str("addr", addr).Int64("size", size).Int("iterations", cfg.Iterations).Msg("benchmark started")

		if err := h.Warmup(ctx, cfg.Warmup); err != nil {
			return err
		}
		if err := h.RunAll(ctx, strategies, cfg.Iterations); err != nil {
			return err
		}
		return rec.Report(os.Stdout, size)
	}

	if cfg.Local {
		err = bench.WithLocalServer(ctx, adapter, run)
	} else {
		err = run(ctx, net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	}
	if err != nil {
		log.Error().Err(err).Msg("benchmark failed")
		os.Exit(1)
	}
}

func selectStrategies(names []string) ([]framer.Strategy, error) {
	if len(names) == 0 {
		return framer.Strategies(), nil
	}
	out := make([]framer.Strategy, 0, len(names))
	for _, name := range names {
		s, err := framer.ParseStrategy(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func loadConfig(args []string) (config.BenchConfig, error) {
	fs := flag.NewFlagSet("framebench", flag.ContinueOnError)
	path := fs.String("config", "", "path to a TOML config file")
	def := config.DefaultBenchConfig()
	host := fs.String("host", def.Host, "receiver host")
	port := fs.Int("port", def.Port, "receiver port")
	ifile := fs.String("ifile", def.InputFile, "payload file sent as each frame")
	sndbuf := fs.Int("so-sndbuf", def.SendBuf, "SO_SNDBUF hint")
	nodelay := fs.Bool("tcp-nodelay", def.NoDelay, "set TCP_NODELAY")
	iterations := fs.Int("n", def.Iterations, "frames sent per strategy")
	warmup := fs.Int("warmup", def.Warmup, "warm-up frames per warm-up strategy")
	strategies := fs.String("strategies", "", "comma separated strategy names (default all)")
	local := fs.Bool("local", def.Local, "run against an in-process receiver")
	if err := fs.Parse(args); err != nil {
		return config.BenchConfig{}, err
	}

	cfg := def
	if *path != "" {
		loaded, err := config.LoadBenchConfig(*path)
		if err != nil {
			return config.BenchConfig{}, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "port":
			cfg.Port = *port
		case "ifile":
			cfg.InputFile = *ifile
		case "so-sndbuf":
			cfg.SendBuf = *sndbuf
		case "tcp-nodelay":
			cfg.NoDelay = *nodelay
		case "n":
			cfg.Iterations = *iterations
		case "warmup":
			cfg.Warmup = *warmup
		case "strategies":
			cfg.Strategies = strings.Split(*strategies, ",")
		case "local":
			cfg.Local = *local
		}
	})

	return cfg, cfg.Validate()
}
