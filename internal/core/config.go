package core

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 공급자 종류
const (
	SourceAPI     = "api"
	SourceCatalog = "catalog"
)

// Config는 전체 애플리케이션 설정을 담는 구조체
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Panel    PanelConfig    `yaml:"panel"`
	Provider ProviderConfig `yaml:"provider"`
	Database DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	HTTPPort   int  `yaml:"http_port"`
	Production bool `yaml:"production"`
}

// PanelConfig는 선택/새로고침/재생 컨트롤러 설정
type PanelConfig struct {
	MaxResults           int `yaml:"max_results"` // 0 = 제한 없음
	FrameIntervalMS      int `yaml:"frame_interval_ms"`
	MinRefreshIntervalMS int `yaml:"min_refresh_interval_ms"`
	FetchTimeoutSec      int `yaml:"fetch_timeout_sec"`
}

func (p PanelConfig) FrameInterval() time.Duration {
	return time.Duration(p.FrameIntervalMS) * time.Millisecond
}

func (p PanelConfig) MinRefreshInterval() time.Duration {
	return time.Duration(p.MinRefreshIntervalMS) * time.Millisecond
}

func (p PanelConfig) FetchTimeout() time.Duration {
	return time.Duration(p.FetchTimeoutSec) * time.Second
}

// ProviderConfig는 카메라 목록 공급자 설정 (api 또는 catalog)
type ProviderConfig struct {
	Source            string        `yaml:"source"`
	APIURL            string        `yaml:"api_url"`
	APIKey            string        `yaml:"api_key"`
	RequestTimeoutSec int           `yaml:"request_timeout_sec"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

func (p ProviderConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSec) * time.Second
}

type BreakerConfig struct {
	MaxRequests      uint32 `yaml:"max_requests"`
	IntervalSec      int    `yaml:"interval_sec"`
	TimeoutSec       int    `yaml:"timeout_sec"`
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig는 시작 시 카탈로그에 넣을 카메라 목록입니다
type CatalogConfig struct {
	Cameras []CatalogCamera `yaml:"cameras"`
}

type CatalogCamera struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
	RefreshRate float64 `yaml:"refresh_rate"`
	ImageURL    string  `yaml:"image_url"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadConfig는 YAML 파일에서 설정을 로드합니다
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig는 YAML 내용을 파싱하고 기본값을 채운 뒤 검증합니다
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()

	// 설정 검증
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// ApplyDefaults는 비어 있는 값에 기본값을 채웁니다
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Panel.FrameIntervalMS == 0 {
		c.Panel.FrameIntervalMS = 750
	}
	if c.Panel.MinRefreshIntervalMS == 0 {
		c.Panel.MinRefreshIntervalMS = 1000
	}
	if c.Panel.FetchTimeoutSec == 0 {
		c.Panel.FetchTimeoutSec = 15
	}
	if c.Provider.Source == "" {
		c.Provider.Source = SourceAPI
	}
	if c.Provider.RequestTimeoutSec == 0 {
		c.Provider.RequestTimeoutSec = 30
	}
	if c.Provider.Breaker.MaxRequests == 0 {
		c.Provider.Breaker.MaxRequests = 1
	}
	if c.Provider.Breaker.TimeoutSec == 0 {
		c.Provider.Breaker.TimeoutSec = 30
	}
	if c.Provider.Breaker.FailureThreshold == 0 {
		c.Provider.Breaker.FailureThreshold = 5
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/trafficcam.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "console"
	}
}

// Validate는 설정값의 유효성을 검증합니다
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.Server.HTTPPort)
	}

	if c.Panel.MaxResults < 0 {
		return fmt.Errorf("max_results must not be negative")
	}
	if c.Panel.FrameIntervalMS <= 0 {
		return fmt.Errorf("frame_interval_ms must be positive")
	}
	if c.Panel.MinRefreshIntervalMS <= 0 {
		return fmt.Errorf("min_refresh_interval_ms must be positive")
	}

	switch c.Provider.Source {
	case SourceAPI:
		u, err := url.Parse(c.Provider.APIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("provider.api_url must be an absolute URL, got %q", c.Provider.APIURL)
		}
	case SourceCatalog:
	default:
		return fmt.Errorf("unknown provider.source %q (want %q or %q)", c.Provider.Source, SourceAPI, SourceCatalog)
	}
	if c.Provider.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}

	seen := make(map[string]bool, len(c.Catalog.Cameras))
	for i, cam := range c.Catalog.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("catalog.cameras[%d]: id is required", i)
		}
		if seen[cam.ID] {
			return fmt.Errorf("catalog.cameras[%d]: duplicate id %s", i, cam.ID)
		}
		seen[cam.ID] = true
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid logging.output: %s", c.Logging.Output)
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required for output %s", c.Logging.Output)
	}

	return nil
}
