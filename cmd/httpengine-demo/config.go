package main

import (
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the demo binary's configuration, loadable from a YAML
// file and overridable by flags.
type Config struct {
	ListenAddr       string        `yaml:"listen_addr"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	KeepAliveTimeout time.Duration `yaml:"keep_alive_timeout"`
	MaxRequests      int           `yaml:"max_requests"`
	BodyLimitBytes   uint64        `yaml:"body_limit_bytes"`
	WorkspaceSize    int           `yaml:"workspace_size"`

	ApplyGzip    bool `yaml:"apply_gzip"`
	ApplyDeflate bool `yaml:"apply_deflate"`
	ApplyBrotli  bool `yaml:"apply_brotli"`

	PoolStrategy string `yaml:"pool_strategy"`
	LogLevel     string `yaml:"log_level"`
}

// DefaultConfig returns the configuration the demo uses when no file
// or flags override it.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       ":8080",
		MetricsAddr:      ":9090",
		KeepAliveTimeout: 60 * time.Second,
		MaxRequests:      0,
		BodyLimitBytes:   16 << 20,
		WorkspaceSize:    0,
		ApplyGzip:        true,
		ApplyDeflate:     true,
		ApplyBrotli:      true,
		PoolStrategy:     "standard",
		LogLevel:         "info",
	}
}

// AddFlags registers c's fields onto flags, so command-line values
// override whatever a config file set.
func (c *Config) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "address to accept HTTP connections on")
	flags.StringVar(&c.MetricsAddr, "metrics-listen", c.MetricsAddr, "address to serve /metrics on")
	flags.DurationVar(&c.KeepAliveTimeout, "keep-alive-timeout", c.KeepAliveTimeout, "idle keep-alive timeout per connection")
	flags.IntVar(&c.MaxRequests, "max-requests", c.MaxRequests, "max requests per connection (0 = unlimited)")
	flags.Uint64Var(&c.BodyLimitBytes, "body-limit-bytes", c.BodyLimitBytes, "max request body size accepted")
	flags.IntVar(&c.WorkspaceSize, "workspace-size", c.WorkspaceSize, "Workspace arena size per Parser/Serializer (0 = default)")
	flags.BoolVar(&c.ApplyGzip, "apply-gzip", c.ApplyGzip, "auto decode/encode gzip Content-Encoding")
	flags.BoolVar(&c.ApplyDeflate, "apply-deflate", c.ApplyDeflate, "auto decode/encode deflate Content-Encoding")
	flags.BoolVar(&c.ApplyBrotli, "apply-brotli", c.ApplyBrotli, "auto decode/encode br Content-Encoding")
	flags.StringVar(&c.PoolStrategy, "pool-strategy", c.PoolStrategy, "parser/serializer pool strategy: standard or percpu")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "zerolog level: debug, info, warn, error")
}

// loadConfigFile merges a YAML file at path into c. A missing path is
// not an error: the caller runs on defaults plus flags only.
func loadConfigFile(c *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}
