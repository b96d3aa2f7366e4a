package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"`          // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`  // 秒
	WriteTimeout int    `mapstructure:"write_timeout"` // 秒，需覆盖多次故障转移与冷却等待
	RateLimit    int    `mapstructure:"rate_limit"`    // 每个 IP 每分钟请求数，0 表示不限
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	// 单节点模式配置
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 哨兵模式配置
	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	// 集群模式配置
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// Addr 单节点地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig 数据库配置，仅在 storage.backend 为 postgres 时使用
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// 存储后端
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// StorageConfig Key 快照与任务状态的持久化配置
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`      // memory, file, redis, sqlite, postgres
	FilePath    string `mapstructure:"file_path"`    // file 后端的 JSON 文件
	SQLitePath  string `mapstructure:"sqlite_path"`  // sqlite 后端的数据库文件
	RedisPrefix string `mapstructure:"redis_prefix"` // redis 后端的键前缀
	SealSecret  string `mapstructure:"seal_secret"`  // 非空时快照使用 AES-GCM 加密
}

// DispatchConfig 调度参数
type DispatchConfig struct {
	Cooldown   time.Duration `mapstructure:"cooldown"`
	Quarantine time.Duration `mapstructure:"quarantine"`
}

// ProvidersConfig 各提供商接口配置
type ProvidersConfig struct {
	Timeout    time.Duration    `mapstructure:"timeout"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
}

// GeminiConfig Gemini 配置
type GeminiConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// OpenAIConfig OpenAI 配置
type OpenAIConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	DefaultModel string `mapstructure:"default_model"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	DefaultModel string `mapstructure:"default_model"`
	Referer      string `mapstructure:"referer"`
	Title        string `mapstructure:"title"`
}

// QueueConfig 批量生成任务队列（asynq，依赖 Redis）
type QueueConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Concurrency int           `mapstructure:"concurrency"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
}

// BootstrapConfig 启动时导入
type BootstrapConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"` // 存储为空时导入的 YAML Key 文件
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选），未找到默认配置文件时使用内置默认值
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_STORAGE_BACKEND

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageMemory, StorageFile, StorageRedis, StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("不支持的存储后端: %q", c.Storage.Backend)
	}
	if c.Dispatch.Quarantine < 0 {
		return fmt.Errorf("dispatch.quarantine 不能为负数")
	}
	if c.Queue.Enabled && c.Queue.Concurrency <= 0 {
		return fmt.Errorf("queue.concurrency 必须大于 0")
	}
	return nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 600)
	v.SetDefault("server.rate_limit", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("storage.backend", StorageFile)
	v.SetDefault("storage.file_path", "./data/store.json")
	v.SetDefault("storage.sqlite_path", "./data/store.db")
	v.SetDefault("storage.redis_prefix", "scriptgen:")

	v.SetDefault("dispatch.cooldown", 2*time.Second)
	v.SetDefault("dispatch.quarantine", 24*time.Hour)

	v.SetDefault("providers.timeout", 120*time.Second)
	v.SetDefault("providers.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("providers.gemini.model", "gemini-2.5-flash")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.default_model", "gpt-4o")
	v.SetDefault("providers.openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("providers.openrouter.default_model", "openai/gpt-4o-mini")
	v.SetDefault("providers.openrouter.referer", "https://script-generator.app")
	v.SetDefault("providers.openrouter.title", "Script Generator")

	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.job_timeout", 30*time.Minute)
}
