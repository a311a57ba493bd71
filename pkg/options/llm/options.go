// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docquery/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置. 嵌入模型与对话模型各持有一份,
// 通过 AddFlags 的 prefix 区分 (embedding.llm.* / chat.llm.*).
type ProviderOptions struct {
	// Provider 供应商名称 (ollama, openai).
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥 (OpenAI 等需要).
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称.
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID (OpenAI 可选).
	Organization string `json:"organization" mapstructure:"organization"`
}

// NewEmbeddingOptions 创建默认嵌入供应商配置.
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Model:      "nomic-embed-text",
		Timeout:    60 * time.Second,
		MaxRetries: 3,
	}
}

// NewChatOptions 创建默认对话供应商配置.
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Model:      "qwen2.5:7b",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// ToConfigMap 转换为配置 map, 用于供应商工厂.
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"model":        o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	join := options.Join(prefixes...)
	fs.StringVar(&o.Provider, join+"llm.provider", o.Provider, "LLM provider (ollama, openai).")
	fs.StringVar(&o.BaseURL, join+"llm.base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, join+"llm.api-key", o.APIKey, "LLM API key.")
	fs.StringVar(&o.Model, join+"llm.model", o.Model, "LLM model name.")
	fs.DurationVar(&o.Timeout, join+"llm.timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, join+"llm.max-retries", o.MaxRetries, "LLM maximum number of retries.")
	fs.StringVar(&o.Organization, join+"llm.organization", o.Organization, "LLM organization ID (optional).")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base-url is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	// OpenAI 供应商需要 API key
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("api-key is required for openai provider"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	return errs
}
