// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "image-translator/pkg/errors"
)

// DefaultConfigPath cmd/api 默认读取的配置文件
const DefaultConfigPath = "configs/api.yaml"

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Model      ModelConfig      `mapstructure:"model"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Session    SessionConfig    `mapstructure:"session"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port           int              `mapstructure:"port"`
	Host           string           `mapstructure:"host"`
	MaxUploadBytes int              `mapstructure:"max_upload_bytes"`
	RunTimeout     string           `mapstructure:"run_timeout"` // 单次工作流（两次推理）的上限，如 "2m"
	CORS           CORSConfig       `mapstructure:"cors"`
	Middleware     MiddlewareConfig `mapstructure:"middleware"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	RateLimit      bool    `mapstructure:"rate_limit"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig 远端多模态推理端点配置
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Timeout string `mapstructure:"timeout"`
}

// SecretsConfig 凭证来源：api_key 为空时按 provider 查找 api_key_name
type SecretsConfig struct {
	Provider   string      `mapstructure:"provider"` // env | memory | vault
	APIKeyName string      `mapstructure:"api_key_name"`
	Vault      VaultConfig `mapstructure:"vault"`
	// Values provider=memory 时的静态 secret；值支持 ${ENV} 替换
	Values map[string]string `mapstructure:"values"`
}

// VaultConfig Vault 连接配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// SessionConfig 会话生命周期配置
type SessionConfig struct {
	TTL           string `mapstructure:"ttl"`
	SweepInterval string `mapstructure:"sweep_interval"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// RateLimitsConfig 出站推理调用限流
type RateLimitsConfig struct {
	LLM LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 推理端点限流配置；0 表示不限
type LLMRateLimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.max_upload_bytes", 10<<20)
	v.SetDefault("api.run_timeout", "2m")
	v.SetDefault("api.cors.enable", true)
	v.SetDefault("api.cors.allow_origins", []string{"*"})
	v.SetDefault("api.middleware.rate_limit", false)
	v.SetDefault("api.middleware.rate_limit_rps", 5)
	v.SetDefault("api.middleware.rate_limit_burst", 10)
	v.SetDefault("model.gemini.api_key", "")
	v.SetDefault("model.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("model.gemini.model", "gemini-2.0-flash")
	v.SetDefault("model.gemini.timeout", "60s")
	v.SetDefault("secrets.provider", "env")
	v.SetDefault("secrets.api_key_name", "GEMINI_API_KEY")
	v.SetDefault("secrets.vault.address", "")
	v.SetDefault("secrets.vault.token", "")
	v.SetDefault("secrets.vault.path_prefix", "secret")
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("session.sweep_interval", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("monitoring.prometheus.enable", true)
	v.SetDefault("monitoring.tracing.enable", false)
	v.SetDefault("monitoring.tracing.service_name", "image-translator")
	v.SetDefault("monitoring.tracing.export_endpoint", "")
	v.SetDefault("monitoring.tracing.insecure", false)
	v.SetDefault("rate_limits.llm.requests_per_minute", 0)
	v.SetDefault("rate_limits.llm.max_concurrent", 0)
}

// LoadConfig 加载配置文件；configPath 为空时只使用默认值与环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrapf(err, "read config %s", configPath)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, apperrors.Wrap(err, "parse config")
	}

	replaceEnvVars(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// replaceEnvVars 替换 "${VAR}" 形式的配置值
func replaceEnvVars(config *Config) {
	config.Model.Gemini.APIKey = expandEnv(config.Model.Gemini.APIKey)
	config.Secrets.Vault.Token = expandEnv(config.Secrets.Vault.Token)
	config.Secrets.Vault.Address = expandEnv(config.Secrets.Vault.Address)
	for k, v := range config.Secrets.Values {
		config.Secrets.Values[k] = expandEnv(v)
	}
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	return os.Getenv(envVar)
}

// Validate 校验时长等字段；凭证是否存在由 app 在解析 secrets 后检查
func (c *Config) Validate() error {
	durations := map[string]string{
		"api.run_timeout":        c.API.RunTimeout,
		"model.gemini.timeout":   c.Model.Gemini.Timeout,
		"session.ttl":            c.Session.TTL,
		"session.sweep_interval": c.Session.SweepInterval,
	}
	for key, val := range durations {
		if val == "" {
			continue
		}
		if d, err := time.ParseDuration(val); err != nil || d <= 0 {
			return fmt.Errorf("invalid duration for %s: %q", key, val)
		}
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api.port: %d", c.API.Port)
	}
	if c.API.MaxUploadBytes <= 0 {
		return fmt.Errorf("api.max_upload_bytes must be positive")
	}
	switch c.Secrets.Provider {
	case "", "env", "memory", "vault":
	default:
		return fmt.Errorf("unsupported secrets.provider: %s", c.Secrets.Provider)
	}
	return nil
}

// Addr 返回监听地址，如 "0.0.0.0:8080"
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
