package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Default author for `gitbuddy post`
	Profile ProfileConfig `yaml:"profile" mapstructure:"profile"`

	GitHub GitHubConfig `yaml:"github" mapstructure:"github"`

	// Summarization provider settings
	LLM LLMConfig `yaml:"llm" mapstructure:"llm"`

	Pinata PinataConfig `yaml:"pinata" mapstructure:"pinata"`

	Streak StreakConfig `yaml:"streak" mapstructure:"streak"`

	// Local post index
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`
}

type ProfileConfig struct {
	Name  string `yaml:"name" mapstructure:"name"`
	Email string `yaml:"email" mapstructure:"email"`
	Image string `yaml:"image" mapstructure:"image"`
}

type GitHubConfig struct {
	Token           string        `yaml:"token" mapstructure:"token"`
	BaseURL         string        `yaml:"base_url" mapstructure:"base_url"`     // GitHub Enterprise API root
	RateLimit       float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // Requests per second
	MaxRepositories int           `yaml:"max_repositories" mapstructure:"max_repositories"`
	Concurrency     int           `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries      int           `yaml:"max_retries" mapstructure:"max_retries"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type LLMConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"` // "gemini", "openai", "none"
	GeminiKey     string `yaml:"gemini_key" mapstructure:"gemini_key"`
	GeminiModel   string `yaml:"gemini_model" mapstructure:"gemini_model"`
	OpenAIKey     string `yaml:"openai_key" mapstructure:"openai_key"`
	OpenAIModel   string `yaml:"openai_model" mapstructure:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url" mapstructure:"openai_base_url"`
	UseKeychain   bool   `yaml:"use_keychain" mapstructure:"use_keychain"` // Prefer keychain over config file

	// Quota enforced through Redis when cache.redis_addr is set
	RPM int64 `yaml:"rpm" mapstructure:"rpm"`
	TPM int64 `yaml:"tpm" mapstructure:"tpm"`
	RPD int64 `yaml:"rpd" mapstructure:"rpd"`
}

type PinataConfig struct {
	JWT        string `yaml:"jwt" mapstructure:"jwt"`
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	SecretKey  string `yaml:"secret_key" mapstructure:"secret_key"`
	APIURL     string `yaml:"api_url" mapstructure:"api_url"`
	GatewayURL string `yaml:"gateway_url" mapstructure:"gateway_url"`
}

type StreakConfig struct {
	RPCURL          string        `yaml:"rpc_url" mapstructure:"rpc_url"`
	ContractAddress string        `yaml:"contract_address" mapstructure:"contract_address"`
	Account         string        `yaml:"account" mapstructure:"account"`
	PrivateKey      string        `yaml:"private_key" mapstructure:"private_key"` // hex; signs locally instead of eth_sendTransaction
	ReceiptTimeout  time.Duration `yaml:"receipt_timeout" mapstructure:"receipt_timeout"`
}

type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "sqlite", "postgres", "none"
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath   string `yaml:"local_path" mapstructure:"local_path"`
}

type CacheConfig struct {
	Directory     string        `yaml:"directory" mapstructure:"directory"`
	AccountTTL    time.Duration `yaml:"account_ttl" mapstructure:"account_ttl"`
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" mapstructure:"redis_password"`
}

// Dir is the per-user state directory
func Dir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".gitbuddy")
}

// DefaultPath is where `gitbuddy configure` writes the config file
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns default configuration
func Default() *Config {
	dir := Dir()
	return &Config{
		GitHub: GitHubConfig{
			RateLimit:       10,
			MaxRepositories: 100,
			Concurrency:     8,
			MaxRetries:      2,
			Timeout:         60 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			GeminiModel: "gemini-2.0-flash",
			OpenAIModel: "gpt-4o-mini",
			UseKeychain: true,
		},
		Pinata: PinataConfig{
			APIURL:     "https://api.pinata.cloud",
			GatewayURL: "https://gateway.pinata.cloud",
		},
		Streak: StreakConfig{
			ContractAddress: "0x7410b151dd9aee17b2fa3b24d5ed7dd560632b03",
			ReceiptTimeout:  2 * time.Minute,
		},
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(dir, "posts.db"),
		},
		Cache: CacheConfig{
			Directory:  dir,
			AccountTTL: 24 * time.Hour,
		},
	}
}

// Load loads configuration from file, .env files, the environment and the keychain
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Unmarshal only overwrites the keys the file sets
	cfg := Default()

	v.SetEnvPrefix("GITBUDDY")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".gitbuddy")
		v.AddConfigPath(Dir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	if cfg.LLM.UseKeychain {
		applyKeychain(cfg, NewKeyringManager())
	}

	cfg.Storage.LocalPath = expandPath(cfg.Storage.LocalPath)
	cfg.Cache.Directory = expandPath(cfg.Cache.Directory)
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	// GitHub configuration
	for _, key := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if token := os.Getenv(key); token != "" {
			cfg.GitHub.Token = token
			break
		}
	}
	if url := os.Getenv("GITHUB_API_URL"); url != "" {
		cfg.GitHub.BaseURL = url
	}
	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}
	cfg.GitHub.MaxRepositories = GetInt("GITHUB_MAX_REPOSITORIES", cfg.GitHub.MaxRepositories)
	cfg.GitHub.Concurrency = GetInt("GITHUB_CONCURRENCY", cfg.GitHub.Concurrency)

	// LLM configuration
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.LLM.GeminiModel = model
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.LLM.OpenAIModel = model
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		cfg.LLM.OpenAIBaseURL = url
	}
	if os.Getenv("GITBUDDY_NO_KEYCHAIN") != "" {
		cfg.LLM.UseKeychain = false
	}

	// Pinata configuration
	if jwt := os.Getenv("PINATA_JWT"); jwt != "" {
		cfg.Pinata.JWT = jwt
	}
	if key := os.Getenv("PINATA_API_KEY"); key != "" {
		cfg.Pinata.APIKey = key
	}
	if secret := os.Getenv("PINATA_SECRET_KEY"); secret != "" {
		cfg.Pinata.SecretKey = secret
	}
	if gateway := os.Getenv("PINATA_GATEWAY_URL"); gateway != "" {
		cfg.Pinata.GatewayURL = gateway
	}

	// Streak configuration
	if url := os.Getenv("STREAK_RPC_URL"); url != "" {
		cfg.Streak.RPCURL = url
	}
	if addr := os.Getenv("STREAK_CONTRACT_ADDRESS"); addr != "" {
		cfg.Streak.ContractAddress = addr
	}
	if account := os.Getenv("STREAK_ACCOUNT"); account != "" {
		cfg.Streak.Account = account
	}
	if key := os.Getenv("STREAK_PRIVATE_KEY"); key != "" {
		cfg.Streak.PrivateKey = key
	}

	// Storage configuration
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = path
	}

	// Cache configuration
	if dir := os.Getenv("CACHE_DIRECTORY"); dir != "" {
		cfg.Cache.Directory = dir
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Cache.RedisPassword = pw
	}

	// Profile
	if email := os.Getenv("GITBUDDY_EMAIL"); email != "" {
		cfg.Profile.Email = email
	}
	if name := os.Getenv("GITBUDDY_NAME"); name != "" {
		cfg.Profile.Name = name
	}
}

// applyKeychain fills secrets that neither the environment nor the file set.
// Precedence: 1. Env var (highest) 2. Keychain 3. Config file (lowest)
func applyKeychain(cfg *Config, km *KeyringManager) {
	if !km.IsAvailable() {
		return
	}
	fill := func(dst *string, envKeys []string, item string) {
		for _, key := range envKeys {
			if os.Getenv(key) != "" {
				return
			}
		}
		if secret, err := km.Get(item); err == nil && secret != "" {
			*dst = secret
		}
	}
	fill(&cfg.GitHub.Token, []string{"GITHUB_TOKEN", "GH_TOKEN"}, KeyringGitHubTokenItem)
	fill(&cfg.LLM.GeminiKey, []string{"GEMINI_API_KEY"}, KeyringGeminiKeyItem)
	fill(&cfg.LLM.OpenAIKey, []string{"OPENAI_API_KEY"}, KeyringOpenAIKeyItem)
	fill(&cfg.Pinata.JWT, []string{"PINATA_JWT"}, KeyringPinataJWTItem)
	fill(&cfg.Pinata.SecretKey, []string{"PINATA_SECRET_KEY"}, KeyringPinataSecretItem)
	fill(&cfg.Streak.PrivateKey, []string{"STREAK_PRIVATE_KEY"}, KeyringStreakKeyItem)
}

// AccountCachePath is the bbolt file caching identity lookups
func (c *Config) AccountCachePath() string {
	return filepath.Join(c.Cache.Directory, "cache.db")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file. Secrets held in the keychain are not written.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("profile", c.Profile)
	v.Set("github", c.GitHub)
	v.Set("llm", c.LLM)
	v.Set("pinata", c.Pinata)
	v.Set("streak", c.Streak)
	v.Set("storage", c.Storage)
	v.Set("cache", c.Cache)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(path, 0600)
}

// WithoutSecrets returns a copy with every credential cleared
func (c *Config) WithoutSecrets() *Config {
	out := *c
	out.GitHub.Token = ""
	out.LLM.GeminiKey = ""
	out.LLM.OpenAIKey = ""
	out.Pinata.JWT = ""
	out.Pinata.SecretKey = ""
	out.Streak.PrivateKey = ""
	out.Cache.RedisPassword = ""
	return &out
}
