// Package options contains flags and options for initializing the docquery server.
package options

import (
	"fmt"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	docquery "github.com/kart-io/docquery/internal/docquery"
	llmopts "github.com/kart-io/docquery/pkg/options/llm"
	logopts "github.com/kart-io/docquery/pkg/options/logger"
	milvusopts "github.com/kart-io/docquery/pkg/options/milvus"
	mysqlopts "github.com/kart-io/docquery/pkg/options/mysql"
	pipelineopts "github.com/kart-io/docquery/pkg/options/pipeline"
	redisopts "github.com/kart-io/docquery/pkg/options/redis"
	serveropts "github.com/kart-io/docquery/pkg/options/server"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// ServerOptions contains HTTP server configuration.
	ServerOptions *serveropts.Options `json:"server" mapstructure:"server"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MySQLOptions contains relational database configuration.
	MySQLOptions *mysqlopts.Options `json:"mysql" mapstructure:"mysql"`

	// RedisOptions contains answer cache configuration.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// MilvusOptions contains vector database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// PipelineOptions contains document pipeline configuration.
	PipelineOptions *pipelineopts.Options `json:"pipeline" mapstructure:"pipeline"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		ServerOptions:    serveropts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		MySQLOptions:     mysqlopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		PipelineOptions:  pipelineopts.NewOptions(),
	}
}

// AddFlags adds all server flags to the given flagset.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	o.ServerOptions.AddFlags(fs)
	o.LogOptions.AddFlags(fs)
	o.MySQLOptions.AddFlags(fs)
	o.RedisOptions.AddFlags(fs)
	o.MilvusOptions.AddFlags(fs)
	o.EmbeddingOptions.AddFlags(fs, "embedding")
	o.ChatOptions.AddFlags(fs, "chat")
	o.PipelineOptions.AddFlags(fs)
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if o.EmbeddingOptions.Provider == "" {
		return fmt.Errorf("embedding provider is required")
	}
	if o.ChatOptions.Provider == "" {
		return fmt.Errorf("chat provider is required")
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	var errs []error

	errs = append(errs, o.ServerOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.MySQLOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.MilvusOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.PipelineOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Config builds the runtime configuration from the validated options.
func (o *ServerOptions) Config() (*docquery.Config, error) {
	return &docquery.Config{
		ServerOptions:    o.ServerOptions,
		LogOptions:       o.LogOptions,
		MySQLOptions:     o.MySQLOptions,
		RedisOptions:     o.RedisOptions,
		MilvusOptions:    o.MilvusOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		PipelineOptions:  o.PipelineOptions,
	}, nil
}
