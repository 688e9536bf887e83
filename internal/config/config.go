package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service needs. Required keys missing
// from the environment fail Load; the process must not serve without them.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Platform PlatformConfig
	AI       AIConfig
	Carrier  CarrierConfig
	Paths    PathsConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	platform, err := loadPlatformConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	carrier, err := loadCarrierConfig()
	if err != nil {
		return nil, err
	}

	paths := loadPathsConfig(server.PublicURL)

	return &Config{
		Server:   server,
		Store:    store,
		Platform: platform,
		AI:       ai,
		Carrier:  carrier,
		Paths:    paths,
	}, nil
}

// ServerConfig describes the HTTP listener and the externally reachable URL
// the carrier calls back on.
type ServerConfig struct {
	Addr      string
	PublicURL string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	addr := port
	if !strings.Contains(port, ":") {
		if strings.Contains(port, " ") {
			return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
		}
		addr = ":" + port
	}

	publicURL, err := requireEnv("PUBLIC_URL")
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{Addr: addr, PublicURL: strings.TrimRight(publicURL, "/")}, nil
}

// StoreConfig identifies the store this agent answers for.
type StoreConfig struct {
	ID       string
	Name     string
	Timezone *time.Location
}

func loadStoreConfig() (StoreConfig, error) {
	id, err := requireEnv("STORE_ID")
	if err != nil {
		return StoreConfig{}, err
	}

	name, err := requireEnv("STORE_NAME")
	if err != nil {
		return StoreConfig{}, err
	}

	tzName := getEnvOrDefault("STORE_TIMEZONE", "America/New_York")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return StoreConfig{}, fmt.Errorf("invalid STORE_TIMEZONE value %q: %w", tzName, err)
	}

	return StoreConfig{ID: id, Name: name, Timezone: loc}, nil
}

// PlatformConfig describes the store-management backend.
type PlatformConfig struct {
	BaseURL    string
	AdminEmail string
	AdminPass  string
}

func loadPlatformConfig() (PlatformConfig, error) {
	baseURL, err := requireEnv("API_BASE_URL")
	if err != nil {
		return PlatformConfig{}, err
	}

	email, err := requireEnv("ADMIN_EMAIL")
	if err != nil {
		return PlatformConfig{}, err
	}

	pass, err := requireEnv("ADMIN_PASSWORD")
	if err != nil {
		return PlatformConfig{}, err
	}

	return PlatformConfig{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AdminEmail: email,
		AdminPass:  pass,
	}, nil
}

// AIConfig describes the language-model backend.
type AIConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	BaseURL        string
	Temperature    *float64
	MaxTokens      *int
}

func loadAIConfig() (AIConfig, error) {
	apiKey, err := requireEnv("OPENAI_API_KEY")
	if err != nil {
		return AIConfig{}, err
	}

	temperature, err := parseOptionalFloatEnv("OPENAI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		defaultTemp := 0.3
		temperature = &defaultTemp
	}

	maxTokens, err := parseOptionalIntEnv("OPENAI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:         apiKey,
		Model:          getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getEnvOrDefault("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		BaseURL:        strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		Temperature:    temperature,
		MaxTokens:      maxTokens,
	}, nil
}

// NewChatModel creates a chat-model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not configured")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	cfg := &openaimodel.ChatModelConfig{
		APIKey:      c.APIKey,
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		Temperature: temperature,
		MaxTokens:   c.MaxTokens,
	}

	return openaimodel.NewChatModel(ctx, cfg)
}

// CarrierConfig describes the telephony carrier account.
type CarrierConfig struct {
	AccountSID      string
	AuthToken       string
	PhoneNumber     string
	ManagerNumber   string
	AppointmentLink string
}

func loadCarrierConfig() (CarrierConfig, error) {
	sid, err := requireEnv("TWILIO_ACCOUNT_SID")
	if err != nil {
		return CarrierConfig{}, err
	}

	token, err := requireEnv("TWILIO_AUTH_TOKEN")
	if err != nil {
		return CarrierConfig{}, err
	}

	return CarrierConfig{
		AccountSID:      sid,
		AuthToken:       token,
		PhoneNumber:     strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER")),
		ManagerNumber:   strings.TrimSpace(os.Getenv("MANAGER_NUMBER")),
		AppointmentLink: strings.TrimSpace(os.Getenv("APPOINTMENT_LINK")),
	}, nil
}

// PathsConfig holds local artifact locations and the public audio base URL
// reported in call logs.
type PathsConfig struct {
	RecordingsDir string
	CacheDir      string
	CallLogFile   string
	AudioBaseURL  string
}

func loadPathsConfig(publicURL string) PathsConfig {
	audioBase := getEnvOrDefault("AUDIO_URL", publicURL+"/recordings")

	return PathsConfig{
		RecordingsDir: getEnvOrDefault("RECORDINGS_DIR", "recordings"),
		CacheDir:      getEnvOrDefault("CACHE_DIR", "cache"),
		CallLogFile:   getEnvOrDefault("CALL_LOG_FILE", "calllog.json"),
		AudioBaseURL:  strings.TrimRight(audioBase, "/"),
	}
}

func requireEnv(key string) (string, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
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
