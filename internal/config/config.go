package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Session  SessionConfig
	Crisis   CrisisConfig
	Storage  StorageConfig
	Referral ReferralConfig
	Log      LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		Session:  session,
		Crisis:   CrisisConfig{ExtraPatterns: splitList(os.Getenv("CRISIS_EXTRA_PATTERNS"))},
		Storage:  storage,
		Referral: ReferralConfig{BaseURL: getEnvOrDefault("REFERRAL_BASE_URL", DefaultReferralBaseURL)},
		Log:      logCfg,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// 可选的助手后端。
const (
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// AIConfig 描述大模型相关配置。Provider 决定使用哪个后端。
type AIConfig struct {
	Provider    string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Gemini      GeminiConfig
}

// GeminiConfig 描述 Gemini 后端配置。
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// SessionConfig 描述对话倒计时。
type SessionConfig struct {
	Duration time.Duration
}

// CrisisConfig 追加的危机关键词正则。
type CrisisConfig struct {
	ExtraPatterns []string
}

// 存储后端。
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// StorageConfig 描述键值存储后端。
type StorageConfig struct {
	Backend    string
	SQLitePath string
	RedisURL   string
	RedisTTL   time.Duration
}

// DefaultReferralBaseURL 是治疗机构查询页面。
const DefaultReferralBaseURL = "https://www.findtreatment.gov/locator"

// ReferralConfig 描述转介链接。
type ReferralConfig struct {
	BaseURL string
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  zerolog.Level
	Pretty bool
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Gemini: GeminiConfig{
			APIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:   getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
			BaseURL: strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")),
		},
	}

	provider := strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER")))
	if provider == "" {
		// 未显式指定时按已提供的凭证推断，都没有则退回 mock。
		switch {
		case cfg.Enabled():
			provider = ProviderArk
		case cfg.Gemini.APIKey != "":
			provider = ProviderGemini
		default:
			provider = ProviderMock
		}
	}

	switch provider {
	case ProviderArk:
		if !cfg.Enabled() {
			return AIConfig{}, fmt.Errorf("AI_PROVIDER=ark requires ARK_API_KEY (or ARK_ACCESS_KEY/ARK_SECRET_KEY) and Model")
		}
	case ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return AIConfig{}, fmt.Errorf("AI_PROVIDER=gemini requires GEMINI_API_KEY")
		}
	case ProviderMock:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}
	cfg.Provider = provider

	return cfg, nil
}

func loadSessionConfig() (SessionConfig, error) {
	seconds, err := parseOptionalIntEnv("SESSION_DURATION_SECONDS")
	if err != nil {
		return SessionConfig{}, err
	}

	duration := 300 * time.Second
	if seconds != nil {
		if *seconds <= 0 {
			return SessionConfig{}, fmt.Errorf("invalid SESSION_DURATION_SECONDS value %d: must be positive", *seconds)
		}
		duration = time.Duration(*seconds) * time.Second
	}
	return SessionConfig{Duration: duration}, nil
}

func loadStorageConfig() (StorageConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", StorageMemory))

	ttlHours, err := parseOptionalIntEnv("REDIS_KEY_TTL_HOURS")
	if err != nil {
		return StorageConfig{}, err
	}
	var ttl time.Duration
	if ttlHours != nil && *ttlHours > 0 {
		ttl = time.Duration(*ttlHours) * time.Hour
	}

	cfg := StorageConfig{
		Backend:    backend,
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "mindcheck.db"),
		RedisURL:   getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		RedisTTL:   ttl,
	}

	switch backend {
	case StorageMemory, StorageSQLite, StorageRedis:
		return cfg, nil
	default:
		return StorageConfig{}, fmt.Errorf("invalid STORAGE_BACKEND value %q", backend)
	}
}

func loadLogConfig() (LogConfig, error) {
	level := zerolog.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value %q: %w", raw, err)
		}
		level = parsed
	}

	pretty, err := parseBoolEnv("LOG_PRETTY", false)
	if err != nil {
		return LogConfig{}, err
	}

	return LogConfig{Level: level, Pretty: pretty}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// splitList 按逗号拆分并去掉空项。
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
