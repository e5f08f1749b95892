package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"strings"
	"time"

	"FlowRank/internal/model"

	"gopkg.in/yaml.v3"
)

// TrackerConfig controls how flows are keyed.
type TrackerConfig struct {
	KeyEncoding string `yaml:"key_encoding"`
	DumpRadix   bool   `yaml:"dump_radix"`
}

// SourceConfig selects where flow records come from. Path "-" or empty means stdin for text.
type SourceConfig struct {
	Type   string       `yaml:"type"`
	Path   string       `yaml:"path"`
	Filter FilterConfig `yaml:"filter"`
}

// FilterConfig restricts the records to endpoints in the given CIDR prefixes.
// A record passes when one of its addresses is included (or Include is empty)
// and neither is excluded.
type FilterConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// ProbeConfig holds the NATS connection used by the publish and serve modes.
type ProbeConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// TextWriterConfig writes the one-line-per-flow report. Empty path means stdout.
type TextWriterConfig struct {
	Path string `yaml:"path"`
}

// SummaryWriterConfig writes a JSON summary and a gob dump of the flows.
type SummaryWriterConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the ClickHouse connection and target table.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
}

// WriterDef defines a single report writer.
type WriterDef struct {
	Type       string              `yaml:"type"`
	Enabled    bool                `yaml:"enabled"`
	Text       TextWriterConfig    `yaml:"text"`
	Summary    SummaryWriterConfig `yaml:"summary"`
	ClickHouse ClickHouseConfig    `yaml:"clickhouse"`
}

// APIConfig holds the listen addresses of the serve mode.
type APIConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	GrpcListenAddr string `yaml:"grpc_listen_addr"`
}

// ManagerConfig tunes the ingestion loop.
type ManagerConfig struct {
	SizeOfRecordChannel int    `yaml:"size_of_record_channel"`
	ProgressInterval    uint64 `yaml:"progress_interval"`
	ShutdownTimeout     string `yaml:"shutdown_timeout"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Tracker TrackerConfig `yaml:"tracker"`
	Source  SourceConfig  `yaml:"source"`
	Probe   ProbeConfig   `yaml:"probe"`
	Writers []WriterDef   `yaml:"writers"`
	API     APIConfig     `yaml:"api"`
	Manager ManagerConfig `yaml:"manager"`
}

// Default returns the configuration used when no file is given: text on
// stdin, the text report on stdout, fixed-width keys.
func Default() *Config {
	cfg := &Config{
		Writers: []WriterDef{{Type: "text", Enabled: true}},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config '%s': %w", filePath, err)
	}
	return &cfg, nil
}

// LoadOrDefault loads filePath, falling back to Default when the file does not exist.
func LoadOrDefault(filePath string) (*Config, error) {
	cfg, err := LoadConfig(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) applyDefaults() {
	if c.Tracker.KeyEncoding == "" {
		c.Tracker.KeyEncoding = string(model.KeyFixed)
	}
	if c.Source.Type == "" {
		c.Source.Type = "text"
	}
	if c.Probe.NATSURL == "" {
		c.Probe.NATSURL = "nats://127.0.0.1:4222"
	}
	if c.Probe.Subject == "" {
		c.Probe.Subject = "flowrank.records"
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.GrpcListenAddr == "" {
		c.API.GrpcListenAddr = ":50051"
	}
	if c.Manager.SizeOfRecordChannel <= 0 {
		c.Manager.SizeOfRecordChannel = 1024
	}
	if c.Manager.ProgressInterval == 0 {
		c.Manager.ProgressInterval = 100000
	}
	if c.Manager.ShutdownTimeout == "" {
		c.Manager.ShutdownTimeout = "5s"
	}
	for i := range c.Writers {
		w := &c.Writers[i]
		if w.Type == "clickhouse" {
			if w.ClickHouse.Port == 0 {
				w.ClickHouse.Port = 9000
			}
			if w.ClickHouse.Database == "" {
				w.ClickHouse.Database = "default"
			}
			if w.ClickHouse.Table == "" {
				w.ClickHouse.Table = "flow_rank"
			}
		}
		if w.Type == "summary" && w.Summary.RootPath == "" {
			w.Summary.RootPath = "reports"
		}
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := model.ParseKeyEncoding(c.Tracker.KeyEncoding); err != nil {
		return err
	}
	switch c.Source.Type {
	case "text", "pcap", "nats":
	default:
		return fmt.Errorf("unknown source type '%s'", c.Source.Type)
	}
	if c.Source.Type == "pcap" && c.Source.Path == "" {
		return errors.New("source type 'pcap' requires a path")
	}
	for _, list := range [][]string{c.Source.Filter.Include, c.Source.Filter.Exclude} {
		if _, err := ParsePrefixes(list); err != nil {
			return err
		}
	}
	if _, err := c.ShutdownTimeout(); err != nil {
		return err
	}
	return nil
}

// ParsePrefixes parses CIDR prefixes. A bare address is taken as a host prefix.
func ParsePrefixes(list []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if !strings.Contains(s, "/") {
			addr, err := netip.ParseAddr(s)
			if err != nil {
				return nil, fmt.Errorf("invalid filter prefix '%s': %w", s, err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		pfx, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("invalid filter prefix '%s': %w", s, err)
		}
		out = append(out, pfx.Masked())
	}
	return out, nil
}

// KeyEncoding returns the parsed tracker key encoding.
func (c *Config) KeyEncoding() model.KeyEncoding {
	enc, err := model.ParseKeyEncoding(c.Tracker.KeyEncoding)
	if err != nil {
		return model.KeyFixed
	}
	return enc
}

// ShutdownTimeout returns the parsed manager shutdown timeout.
func (c *Config) ShutdownTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Manager.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("shutdown_timeout must be a positive duration")
	}
	return d, nil
}
