package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Zacy-Sokach/PolyCanvas/internal/params"
	"github.com/Zacy-Sokach/PolyCanvas/internal/utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 环境变量，优先级高于配置文件
const (
	EnvBackendURL = "POLYCANVAS_BACKEND_URL"
	EnvDevice     = "POLYCANVAS_DEVICE"
	EnvOutputDir  = "POLYCANVAS_OUTPUT_DIR"
	EnvLogLevel   = "POLYCANVAS_LOG_LEVEL"
)

type Config struct {
	Backend       BackendConfig  `yaml:"backend"`
	OutputDir     string         `yaml:"output_dir"`
	ThumbnailSize int            `yaml:"thumbnail_size"`
	History       HistoryConfig  `yaml:"history"`
	Log           LogConfig      `yaml:"log"`
	Defaults      DefaultsConfig `yaml:"defaults"`
}

type BackendConfig struct {
	URL            string `yaml:"url"`
	Device         string `yaml:"device"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Timeout 单次请求超时
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path 为空时放在配置目录下
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultsConfig 参数面板的初始值
type DefaultsConfig struct {
	Sampler       string `yaml:"sampler"`
	NumSteps      int    `yaml:"num_steps"`
	GuidanceScale int    `yaml:"guidance_scale"`
	Height        int    `yaml:"height"`
	Width         int    `yaml:"width"`
	PriorCFScale  int    `yaml:"prior_cf_scale"`
	PriorSteps    int    `yaml:"prior_steps"`
}

// PanelDefaults 转换为参数面板的默认值；未知采样器和越界的值由面板回退
func (d DefaultsConfig) PanelDefaults() params.Defaults {
	sampler, err := params.ParseSampler(d.Sampler)
	if err != nil {
		sampler = params.SamplerP
	}
	values := make(map[params.Key]int)
	set := func(k params.Key, v int) {
		if v != 0 {
			values[k] = v
		}
	}
	set(params.KeyNumSteps, d.NumSteps)
	set(params.KeyGuidanceScale, d.GuidanceScale)
	set(params.KeyHeight, d.Height)
	set(params.KeyWidth, d.Width)
	set(params.KeyPriorCFScale, d.PriorCFScale)
	set(params.KeyPriorSteps, d.PriorSteps)
	return params.Defaults{Sampler: sampler, Values: values}
}

func DefaultConfig() *Config {
	return &Config{
		Backend:       DefaultBackendConfig(),
		OutputDir:     "outputs",
		ThumbnailSize: 150,
		History:       HistoryConfig{Enabled: true},
		Log:           LogConfig{Level: "info"},
		Defaults: DefaultsConfig{
			Sampler:       string(params.SamplerP),
			NumSteps:      75,
			GuidanceScale: 10,
			Height:        768,
			Width:         768,
			PriorCFScale:  4,
			PriorSteps:    4,
		},
	}
}

func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		URL:            "http://127.0.0.1:7860",
		Device:         "cuda",
		TimeoutSeconds: 600,
		MaxRetries:     2,
	}
}

// LoadConfig 读取配置文件，并应用 .env 和环境变量覆盖
func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	// .env 不存在时忽略
	_ = godotenv.Load()
	applyEnv(config)
	fillDefaults(config)

	return config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv(EnvBackendURL); v != "" {
		config.Backend.URL = v
	}
	if v := os.Getenv(EnvDevice); v != "" {
		config.Backend.Device = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		config.OutputDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.Log.Level = strings.ToLower(v)
	}
}

// fillDefaults 配置文件里留空的字段回退到默认值
func fillDefaults(config *Config) {
	def := DefaultConfig()
	if config.Backend.URL == "" {
		config.Backend.URL = def.Backend.URL
	}
	if config.Backend.Device == "" {
		config.Backend.Device = def.Backend.Device
	}
	if config.Backend.TimeoutSeconds <= 0 {
		config.Backend.TimeoutSeconds = def.Backend.TimeoutSeconds
	}
	if config.Backend.MaxRetries < 0 {
		config.Backend.MaxRetries = 0
	}
	if config.OutputDir == "" {
		config.OutputDir = def.OutputDir
	}
	if config.ThumbnailSize <= 0 {
		config.ThumbnailSize = def.ThumbnailSize
	}
	if config.Log.Level == "" {
		config.Log.Level = def.Log.Level
	}
}

func SaveConfig(config *Config) error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// HistoryPath 历史数据库路径
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	return utils.ConfigFile("history.sqlite")
}

// LogPath 日志文件路径
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	return utils.ConfigFile("polycanvas.log")
}

// ConfigPath 配置文件路径
func ConfigPath() (string, error) {
	return getConfigPath()
}

// ConfigExists 配置文件是否已存在
func ConfigExists() bool {
	configPath, err := getConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(configPath)
	return err == nil
}

func getConfigPath() (string, error) {
	configPath, err := utils.ConfigFile("config.yaml")
	if err != nil {
		return "", fmt.Errorf("获取配置目录失败: %w", err)
	}
	return configPath, nil
}
