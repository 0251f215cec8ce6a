package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName 默认配置文件名（位于可执行文件同目录）
const ConfigFileName = "config.toml"

// AppConfig 应用配置
type AppConfig struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Pagination PaginationConfig `toml:"pagination"`
	Log        LogConfig        `toml:"log"`
	Business   BusinessConfig   `toml:"business"`
	Events     EventsConfig     `toml:"events"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port            int      `toml:"port"`
	DevMode         bool     `toml:"dev_mode"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	CORSOrigins     []string `toml:"cors_origins"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver            string   `toml:"driver"` // sqlite3 / pgx
	DSN               string   `toml:"dsn"`    // pgx 连接串；sqlite3 为空时使用 data_dir/file_name
	DataDir           string   `toml:"data_dir"`
	FileName          string   `toml:"file_name"`
	MaxRetries        int      `toml:"max_retries"`
	RetryInitialDelay Duration `toml:"retry_initial_delay"`
	RetryMaxDelay     Duration `toml:"retry_max_delay"`
	BreakerEnabled    bool     `toml:"breaker_enabled"`
	BreakerTimeout    Duration `toml:"breaker_timeout"`
}

// PaginationConfig 分页配置
type PaginationConfig struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json / console
}

// BusinessConfig 业务配置
type BusinessConfig struct {
	Timezone    string   `toml:"timezone"`
	DownloadTTL Duration `toml:"download_ttl"`
}

// EventsConfig 异常处理事件推送配置
type EventsConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string
	FileFound     bool
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:            20261,
			DevMode:         false,
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:            "sqlite3",
			DataDir:           "data",
			FileName:          "raingauge.db",
			MaxRetries:        3,
			RetryInitialDelay: Duration(500 * time.Millisecond),
			RetryMaxDelay:     Duration(5 * time.Second),
			BreakerEnabled:    false,
			BreakerTimeout:    Duration(30 * time.Second),
		},
		Pagination: PaginationConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Business: BusinessConfig{
			Timezone:    "Asia/Shanghai",
			DownloadTTL: Duration(10 * time.Minute),
		},
		Events: EventsConfig{
			Enabled: false,
			Topic:   "raingauge.exception.resolved",
		},
	}
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// DefaultConfigPath 可执行文件同目录下的 config.toml
func DefaultConfigPath() string {
	exeDir, err := GetExeDir()
	if err != nil {
		// 无法获取可执行文件目录，使用当前目录
		exeDir = "."
	}
	return filepath.Join(exeDir, ConfigFileName)
}

// LoadConfigWithInfo 加载配置：默认值 -> config.toml -> .env / 环境变量，最后校验
// path 为空时使用可执行文件同目录下的 config.toml
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	info := LoadConfigInfo{Path: path}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info.FileFound = true
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, info, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// 配置文件不存在，使用默认配置
	default:
		return nil, info, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// .env 可选，仅补充尚未设置的环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, info, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, info, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, info, err
	}
	return cfg, info, nil
}

// LoadConfig 加载配置
func LoadConfig(path string) (*AppConfig, error) {
	cfg, _, err := LoadConfigWithInfo(path)
	return cfg, err
}

// SaveConfig 保存配置到指定路径
func SaveConfig(cfg *AppConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// 环境变量覆盖（用于容器部署 / 本地运行）
func applyEnvOverrides(cfg *AppConfig) error {
	var errs []error

	if v := os.Getenv("RAINGAUGE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid RAINGAUGE_PORT %q: %w", v, err))
		} else {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RAINGAUGE_DEV_MODE"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid RAINGAUGE_DEV_MODE %q: %w", v, err))
		} else {
			cfg.Server.DevMode = dev
		}
	}
	if v := os.Getenv("RAINGAUGE_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("RAINGAUGE_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("RAINGAUGE_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("RAINGAUGE_DATA_DIR"); v != "" {
		cfg.Database.DataDir = v
	}
	if v := os.Getenv("RAINGAUGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RAINGAUGE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("RAINGAUGE_TIMEZONE"); v != "" {
		cfg.Business.Timezone = v
	}
	if v := os.Getenv("RAINGAUGE_KAFKA_BROKERS"); v != "" {
		cfg.Events.Brokers = splitList(v)
		cfg.Events.Enabled = true
	}
	if v := os.Getenv("RAINGAUGE_KAFKA_TOPIC"); v != "" {
		cfg.Events.Topic = v
	}

	return errors.Join(errs...)
}

// Validate 校验配置
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch c.Database.Driver {
	case "sqlite3":
	case "pgx":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for driver pgx"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database.driver %q", c.Database.Driver))
	}
	if c.Database.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("database.max_retries must be >= 1, got %d", c.Database.MaxRetries))
	}
	if c.Pagination.MaxPageSize < 1 {
		errs = append(errs, fmt.Errorf("pagination.max_page_size must be >= 1, got %d", c.Pagination.MaxPageSize))
	}
	if c.Pagination.DefaultPageSize < 1 || c.Pagination.DefaultPageSize > c.Pagination.MaxPageSize {
		errs = append(errs, fmt.Errorf("pagination.default_page_size must be within [1, %d], got %d",
			c.Pagination.MaxPageSize, c.Pagination.DefaultPageSize))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("business.timezone: %w", err))
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		errs = append(errs, errors.New("events.brokers is required when events are enabled"))
	}

	return errors.Join(errs...)
}

// Location 业务时区
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// EnsureDataDir 确保数据目录存在
// 相对路径基于可执行文件所在目录
func EnsureDataDir(cfg *AppConfig) (string, error) {
	dataDir := cfg.Database.DataDir
	if !filepath.IsAbs(dataDir) {
		exeDir, err := GetExeDir()
		if err != nil {
			exeDir = "."
		}
		dataDir = filepath.Join(exeDir, dataDir)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	// 导出临时文件目录
	if err := os.MkdirAll(filepath.Join(dataDir, "exports"), 0755); err != nil {
		return "", err
	}

	return dataDir, nil
}

// DataSourceName 数据库连接串；sqlite3 未配置 dsn 时指向数据目录下的库文件
func DataSourceName(cfg *AppConfig) (string, error) {
	if cfg.Database.DSN != "" {
		return cfg.Database.DSN, nil
	}
	dataDir, err := EnsureDataDir(cfg)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, cfg.Database.FileName), nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
