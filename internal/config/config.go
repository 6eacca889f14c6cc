package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/Zereker/framer"
)

// ServerConfig drives cmd/frameserver.
type ServerConfig struct {
	Port         int
	OutputFile   string
	ReceiveBuf   int
	Strategy     string
	Mode         string
	NoBuffering  bool
	LegacyPrefix bool
	Concurrency  int
	ReadTimeout  time.Duration
	MetricsAddr  string
}

// BenchConfig drives cmd/framebench.
type BenchConfig struct {
	Host       string
	Port       int
	InputFile  string
	SendBuf    int
	NoDelay    bool
	Iterations int
	Warmup     int
	Strategies []string
	Local      bool
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:        6666,
		Strategy:    framer.DefaultStrategy.Name,
		Mode:        "channel",
		Concurrency: 1,
	}
}

func DefaultBenchConfig() BenchConfig {
	return BenchConfig{
		Host:       "localhost",
		Port:       6666,
		InputFile:  "/tmp/ifile",
		Iterations: 100,
		Warmup:     1000,
	}
}

type serverFile struct {
	Port         int    `toml:"port"`
	OutputFile   string `toml:"output_file"`
	ReceiveBuf   int    `toml:"so_rcvbuf"`
	Strategy     string `toml:"strategy"`
	Mode         string `toml:"mode"`
	NoBuffering  bool   `toml:"no_buffering"`
	LegacyPrefix bool   `toml:"legacy_prefix"`
	Concurrency  int    `toml:"concurrency"`
	ReadTimeout  string `toml:"read_timeout"`
	MetricsAddr  string `toml:"metrics_addr"`
}

type benchFile struct {
	Host       string   `toml:"host"`
	Port       int      `toml:"port"`
	InputFile  string   `toml:"input_file"`
	SendBuf    int      `toml:"so_sndbuf"`
	NoDelay    bool     `toml:"tcp_nodelay"`
	Iterations int      `toml:"iterations"`
	Warmup     int      `toml:"warmup"`
	Strategies []string `toml:"strategies"`
	Local      bool     `toml:"local"`
}

// LoadServerConfig reads path over the defaults. Keys absent from the file
// keep their default values.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	var raw serverFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServerConfig{}, errors.Wrapf(err, "config: load server config (%s)", path)
	}
	if keys := meta.Undecoded(); len(keys) > 0 {
		return ServerConfig{}, errors.Errorf("config: unknown keys in %s: %v", path, keys)
	}

	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("output_file") {
		cfg.OutputFile = strings.TrimSpace(raw.OutputFile)
	}
	if meta.IsDefined("so_rcvbuf") {
		cfg.ReceiveBuf = raw.ReceiveBuf
	}
	if meta.IsDefined("strategy") {
		cfg.Strategy = strings.TrimSpace(raw.Strategy)
	}
	if meta.IsDefined("mode") {
		cfg.Mode = strings.ToLower(strings.TrimSpace(raw.Mode))
	}
	if meta.IsDefined("no_buffering") {
		cfg.NoBuffering = raw.NoBuffering
	}
	if meta.IsDefined("legacy_prefix") {
		cfg.LegacyPrefix = raw.LegacyPrefix
	}
	if meta.IsDefined("concurrency") {
		cfg.Concurrency = raw.Concurrency
	}
	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return ServerConfig{}, errors.Wrap(err, "config: parse read_timeout")
		}
		cfg.ReadTimeout = d
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// LoadBenchConfig reads path over the defaults.
func LoadBenchConfig(path string) (BenchConfig, error) {
	cfg := DefaultBenchConfig()

	var raw benchFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return BenchConfig{}, errors.Wrapf(err, "config: load bench config (%s)", path)
	}
	if keys := meta.Undecoded(); len(keys) > 0 {
		return BenchConfig{}, errors.Errorf("config: unknown keys in %s: %v", path, keys)
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("input_file") {
		cfg.InputFile = strings.TrimSpace(raw.InputFile)
	}
	if meta.IsDefined("so_sndbuf") {
		cfg.SendBuf = raw.SendBuf
	}
	if meta.IsDefined("tcp_nodelay") {
		cfg.NoDelay = raw.NoDelay
	}
	if meta.IsDefined("iterations") {
		cfg.Iterations = raw.Iterations
	}
	if meta.IsDefined("warmup") {
		cfg.Warmup = raw.Warmup
	}
	if meta.IsDefined("strategies") {
		cfg.Strategies = normalize(raw.Strategies)
	}
	if meta.IsDefined("local") {
		cfg.Local = raw.Local
	}

	if err := cfg.Validate(); err != nil {
		return BenchConfig{}, err
	}
	return cfg, nil
}

// Validate checks ranges and names.
func (c ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("config: port %d out of range", c.Port)
	}
	if c.ReceiveBuf < 0 {
		return errors.New("config: so_rcvbuf must not be negative")
	}
	if _, err := framer.ParseStrategy(c.Strategy); err != nil {
		return errors.Wrap(err, "config")
	}
	if _, err := ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return errors.New("config: concurrency must be at least 1")
	}
	if c.ReadTimeout < 0 {
		return errors.New("config: read_timeout must not be negative")
	}
	return nil
}

// Validate checks ranges and names.
func (c BenchConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" && !c.Local {
		return errors.New("config: host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("config: port %d out of range", c.Port)
	}
	if strings.TrimSpace(c.InputFile) == "" {
		return errors.New("config: input_file is required")
	}
	if c.Iterations < 1 {
		return errors.New("config: iterations must be at least 1")
	}
	if c.Warmup < 0 {
		return errors.New("config: warmup must not be negative")
	}
	for _, name := range c.Strategies {
		if _, err := framer.ParseStrategy(name); err != nil {
			return errors.Wrap(err, "config")
		}
	}
	return nil
}

// ParseMode maps "channel" or "stream" to a framer.Mode.
func ParseMode(raw string) (framer.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "channel":
		return framer.ModeChannel, nil
	case "stream":
		return framer.ModeStream, nil
	default:
		return framer.ModeChannel, errors.Errorf("config: unknown mode %q", raw)
	}
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		v := strings.TrimSpace(s)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
