package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultDBFileName   = ".lifelog.db"
	DefaultBlobDirName  = ".lifelog-blobs"
	DefaultLogLevel     = "info"
	DefaultBlobBackend  = BlobBackendLocal
	DefaultS3Region     = "us-east-1"
	DefaultLLMTimeout   = 120 * time.Second
	DefaultMaxPayload   = 25 * 1024 * 1024
	configFileName      = ".lifelog.toml"
	configDirEnvKey     = "LIFELOG_CONFIG_DIR"
	trustProjectEnvKey  = "LIFELOG_TRUST_PROJECT_CONFIG"
	maskedSecretPadding = "********"
)

// Blob backends for media payloads.
const (
	BlobBackendInline = "inline"
	BlobBackendLocal  = "local"
	BlobBackendS3     = "s3"
)

// S3Config addresses an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

// BlobConfig selects where media payloads live.
type BlobConfig struct {
	Backend string   `toml:"backend"`
	Root    string   `toml:"root"`
	S3      S3Config `toml:"s3"`
}

// OpenAIConfig configures the language-model gateway.
type OpenAIConfig struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	ChatModel           string `toml:"chat_model"`
	TranscriptionModel  string `toml:"transcription_model"`
	EmbeddingModel      string `toml:"embedding_model"`
	EmbeddingDimensions int    `toml:"embedding_dimensions"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// Timeout returns the configured request timeout.
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultLLMTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IngestConfig bounds what the CLI accepts for ingestion.
type IngestConfig struct {
	MaxPayloadBytes int64 `toml:"max_payload_bytes"`
}

// Config defines runtime configuration for lifelog.
type Config struct {
	DBPath                   string       `toml:"db_path"`
	LogLevel                 string       `toml:"log_level"`
	Blobs                    BlobConfig   `toml:"blobs"`
	OpenAI                   OpenAIConfig `toml:"openai"`
	Ingest                   IngestConfig `toml:"ingest"`
	TrustedProjectConfigPath string       `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Blobs: BlobConfig{
			Backend: DefaultBlobBackend,
			S3:      S3Config{Region: DefaultS3Region, UseSSL: true},
		},
		OpenAI: OpenAIConfig{
			TimeoutSeconds: int(DefaultLLMTimeout / time.Second),
		},
		Ingest: IngestConfig{MaxPayloadBytes: DefaultMaxPayload},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"db_path",
	"log_level",
	"blobs.backend",
	"blobs.root",
	"blobs.s3.endpoint",
	"blobs.s3.bucket",
	"blobs.s3.region",
	"blobs.s3.access_key",
	"blobs.s3.secret_key",
	"blobs.s3.use_ssl",
	"openai.api_key",
	"openai.base_url",
	"openai.chat_model",
	"openai.transcription_model",
	"openai.embedding_model",
	"openai.embedding_dimensions",
	"openai.timeout_seconds",
	"ingest.max_payload_bytes",
}

var secretKeys = map[string]struct{}{
	"openai.api_key":      {},
	"blobs.s3.secret_key": {},
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	out := make([]string, len(allowedKeys))
	copy(out, allowedKeys)
	return out
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key. Secrets are masked.
func (c *Config) Get(key string) (string, error) {
	var value string
	switch key {
	case "db_path":
		value = c.DBPath
	case "log_level":
		value = c.LogLevel
	case "blobs.backend":
		value = c.Blobs.Backend
	case "blobs.root":
		value = c.Blobs.Root
	case "blobs.s3.endpoint":
		value = c.Blobs.S3.Endpoint
	case "blobs.s3.bucket":
		value = c.Blobs.S3.Bucket
	case "blobs.s3.region":
		value = c.Blobs.S3.Region
	case "blobs.s3.access_key":
		value = c.Blobs.S3.AccessKey
	case "blobs.s3.secret_key":
		value = c.Blobs.S3.SecretKey
	case "blobs.s3.use_ssl":
		value = strconv.FormatBool(c.Blobs.S3.UseSSL)
	case "openai.api_key":
		value = c.OpenAI.APIKey
	case "openai.base_url":
		value = c.OpenAI.BaseURL
	case "openai.chat_model":
		value = c.OpenAI.ChatModel
	case "openai.transcription_model":
		value = c.OpenAI.TranscriptionModel
	case "openai.embedding_model":
		value = c.OpenAI.EmbeddingModel
	case "openai.embedding_dimensions":
		value = strconv.Itoa(c.OpenAI.EmbeddingDimensions)
	case "openai.timeout_seconds":
		value = strconv.Itoa(c.OpenAI.TimeoutSeconds)
	case "ingest.max_payload_bytes":
		value = strconv.FormatInt(c.Ingest.MaxPayloadBytes, 10)
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
	if _, secret := secretKeys[key]; secret {
		return maskSecret(value), nil
	}
	return value, nil
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return maskedSecretPadding
	}
	return maskedSecretPadding + value[len(value)-4:]
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// The file may hold credentials.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if dbPath := os.Getenv("LIFELOG_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if level := strings.TrimSpace(os.Getenv("LIFELOG_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if backend := strings.TrimSpace(os.Getenv("LIFELOG_BLOB_BACKEND")); backend != "" {
		cfg.Blobs.Backend = backend
	}
	if root := os.Getenv("LIFELOG_BLOB_ROOT"); root != "" {
		cfg.Blobs.Root = root
	}
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		cfg.OpenAI.APIKey = key
	}
	if baseURL := strings.TrimSpace(os.Getenv("LIFELOG_OPENAI_BASE_URL")); baseURL != "" {
		cfg.OpenAI.BaseURL = baseURL
	}
	if accessKey := os.Getenv("LIFELOG_S3_ACCESS_KEY"); accessKey != "" {
		cfg.Blobs.S3.AccessKey = accessKey
	}
	if secretKey := os.Getenv("LIFELOG_S3_SECRET_KEY"); secretKey != "" {
		cfg.Blobs.S3.SecretKey = secretKey
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Blobs.Backend = strings.ToLower(strings.TrimSpace(c.Blobs.Backend))
	switch c.Blobs.Backend {
	case "":
		c.Blobs.Backend = DefaultBlobBackend
	case BlobBackendInline, BlobBackendLocal, BlobBackendS3:
	default:
		return fmt.Errorf("invalid blobs.backend %q (want %s, %s or %s)", c.Blobs.Backend, BlobBackendInline, BlobBackendLocal, BlobBackendS3)
	}
	if c.Blobs.Backend == BlobBackendLocal && c.Blobs.Root == "" && c.DBPath != "" {
		c.Blobs.Root = filepath.Join(filepath.Dir(c.DBPath), DefaultBlobDirName)
	}
	if c.Blobs.S3.Region == "" {
		c.Blobs.S3.Region = DefaultS3Region
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = int(DefaultLLMTimeout / time.Second)
	}
	if c.Ingest.MaxPayloadBytes <= 0 {
		c.Ingest.MaxPayloadBytes = DefaultMaxPayload
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "ingest.max_payload_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "openai.embedding_dimensions", "openai.timeout_seconds":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "blobs.s3.use_ssl":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "blobs.backend":
		lower := strings.ToLower(value)
		switch lower {
		case BlobBackendInline, BlobBackendLocal, BlobBackendS3:
			return lower, nil
		}
		return nil, fmt.Errorf("%s must be one of %s, %s, %s", key, BlobBackendInline, BlobBackendLocal, BlobBackendS3)
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
