// Package mysql provides relational database configuration options.
package mysql

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docquery/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options defines configuration options for the relational store.
// When DSN is set to "sqlite::memory:" or a file path ending in ".db",
// the embedded sqlite driver is used instead of MySQL. 便于本地开发与测试.
type Options struct {
	Host                  string        `json:"host" mapstructure:"host"`
	Port                  int           `json:"port" mapstructure:"port"`
	Username              string        `json:"username" mapstructure:"username"`
	Password              string        `json:"-" mapstructure:"password"`
	Database              string        `json:"database" mapstructure:"database"`
	SQLitePath            string        `json:"sqlite-path" mapstructure:"sqlite-path"`
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	LogLevel              int           `json:"log-level" mapstructure:"log-level"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:                  "127.0.0.1",
		Port:                  3306,
		Username:              "root",
		Database:              "docquery",
		MaxIdleConnections:    10,
		MaxOpenConnections:    100,
		MaxConnectionLifeTime: 10 * time.Second,
		LogLevel:              1, // Silent
	}
}

// DSN returns the MySQL data source name.
func (o *Options) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=Local",
		o.Username, o.Password, o.Host, o.Port, o.Database)
}

// UseSQLite reports whether the embedded sqlite driver should be used.
func (o *Options) UseSQLite() bool {
	return o.SQLitePath != ""
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	// 优先从环境变量读取密码, 避免通过 CLI 泄露
	if o.Password == "" {
		o.Password = os.Getenv("MYSQL_PASSWORD")
	}

	var errs []error
	if !o.UseSQLite() && o.Database == "" {
		errs = append(errs, fmt.Errorf("mysql database name is required"))
	}
	return errs
}

// AddFlags adds flags for database options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	join := options.Join(prefixes...)
	fs.StringVar(&o.Host, join+"mysql.host", o.Host, "MySQL host.")
	fs.IntVar(&o.Port, join+"mysql.port", o.Port, "MySQL port.")
	fs.StringVar(&o.Username, join+"mysql.username", o.Username, "MySQL username.")
	fs.StringVar(&o.Password, join+"mysql.password", o.Password, "MySQL password (prefer MYSQL_PASSWORD env var).")
	fs.StringVar(&o.Database, join+"mysql.database", o.Database, "MySQL database.")
	fs.StringVar(&o.SQLitePath, join+"mysql.sqlite-path", o.SQLitePath, "Use embedded sqlite at this path instead of MySQL (dev only, \":memory:\" for in-memory).")
	fs.IntVar(&o.MaxIdleConnections, join+"mysql.max-idle-connections", o.MaxIdleConnections, "MySQL max idle connections.")
	fs.IntVar(&o.MaxOpenConnections, join+"mysql.max-open-connections", o.MaxOpenConnections, "MySQL max open connections.")
	fs.DurationVar(&o.MaxConnectionLifeTime, join+"mysql.max-connection-life-time", o.MaxConnectionLifeTime, "MySQL max connection life time.")
	fs.IntVar(&o.LogLevel, join+"mysql.log-level", o.LogLevel, "GORM log level.")
}
