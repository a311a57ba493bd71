// Package server provides HTTP server configuration options.
package server

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docquery/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains HTTP server configuration.
type Options struct {
	// Addr is the listen address (host:port).
	Addr string `json:"addr" mapstructure:"addr"`

	// Mode is the gin mode (debug|release|test).
	Mode string `json:"mode" mapstructure:"mode"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`

	// ShutdownTimeout 优雅退出的最长等待时间.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Addr:            ":8080",
		Mode:            "release",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute, // 生成答案可能很慢
		ShutdownTimeout: 10 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	join := options.Join(prefixes...)
	fs.StringVar(&o.Addr, join+"server.addr", o.Addr, "HTTP listen address (host:port).")
	fs.StringVar(&o.Mode, join+"server.mode", o.Mode, "Server mode (debug|release|test).")
	fs.DurationVar(&o.ReadTimeout, join+"server.read-timeout", o.ReadTimeout, "HTTP read timeout.")
	fs.DurationVar(&o.WriteTimeout, join+"server.write-timeout", o.WriteTimeout, "HTTP write timeout.")
	fs.DurationVar(&o.ShutdownTimeout, join+"server.shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("server addr is required"))
	}
	switch o.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("invalid server mode %q", o.Mode))
	}
	return errs
}
