package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Upload UploadConfig `mapstructure:"upload"`
	Model  ModelConfig  `mapstructure:"model"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type UploadConfig struct {
	MaxSize   int64         `mapstructure:"max_size"`
	OutputDir string        `mapstructure:"output_dir"`
	Retention time.Duration `mapstructure:"retention"`
	// CleanupSpec 过期结果清理的 cron 表达式
	CleanupSpec string `mapstructure:"cleanup_spec"`
}

type ModelConfig struct {
	Path        string    `mapstructure:"path"`
	URL         string    `mapstructure:"url"`
	Library     string    `mapstructure:"library"`
	InputSize   int       `mapstructure:"input_size"`
	Providers   []string  `mapstructure:"providers"`
	NumThreads  int       `mapstructure:"num_threads"`
	Mean        []float32 `mapstructure:"mean"`
	Std         []float32 `mapstructure:"std"`
	SmoothSigma float64   `mapstructure:"smooth_sigma"`
	// Trim 裁掉主体之外的透明边
	Trim          bool    `mapstructure:"trim"`
	TrimThreshold float64 `mapstructure:"trim_threshold"`
	TrimMargin    int     `mapstructure:"trim_margin"`
	// Premultiply 输出预乘 alpha
	Premultiply bool `mapstructure:"premultiply"`
	// RemoteURL 非空时改用远程推理服务，不加载本地模型
	RemoteURL string `mapstructure:"remote_url"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置，失败时退回默认值
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return Default()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)

	v.SetDefault("upload.max_size", int64(20*1024*1024))
	v.SetDefault("upload.output_dir", "./output")
	v.SetDefault("upload.retention", 24*time.Hour)
	v.SetDefault("upload.cleanup_spec", "@hourly")

	v.SetDefault("model.path", "models/u2netp.onnx")
	v.SetDefault("model.input_size", 320)
	v.SetDefault("model.providers", []string{"cuda", "cpu"})
	v.SetDefault("model.num_threads", 1)
	v.SetDefault("model.mean", []float32{0.485, 0.456, 0.406})
	v.SetDefault("model.std", []float32{0.229, 0.224, 0.225})
	v.SetDefault("model.smooth_sigma", 0.0)
	v.SetDefault("model.trim", false)
	v.SetDefault("model.trim_threshold", 0.8)
	v.SetDefault("model.trim_margin", 16)
	v.SetDefault("model.premultiply", false)
}

// Default 内置默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("unmarshal default config: %v", err))
	}
	return &cfg
}
