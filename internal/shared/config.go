package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Destination kinds accepted in [DestinationConfig].
const (
	DestinationYTMusic = "ytmusic"
	DestinationYouTube = "youtube"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Destination DestinationConfig `toml:"destination"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Redis       RedisConfig       `toml:"redis"`
	AMQP        AMQPConfig        `toml:"amqp"`
	Matching    MatchingConfig    `toml:"matching"`
	Transfer    TransferConfig    `toml:"transfer"`
	Resolver    ResolverConfig    `toml:"resolver"`
	Reports     ReportsConfig     `toml:"reports"`
	Minio       MinioConfig       `toml:"minio"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials and the per-session token directory.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	TokensDir    string `toml:"tokens_dir"`
}

// YouTubeConfig contains YouTube Data API and YouTube Music proxy settings.
type YouTubeConfig struct {
	APIKey     string `toml:"api_key"`
	ProxyURL   string `toml:"proxy_url"`
	HeadersDir string `toml:"headers_dir"`
}

// DestinationConfig selects the destination catalog implementation.
type DestinationConfig struct {
	Kind string `toml:"kind"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisConfig configures the progress/cancellation store.
type RedisConfig struct {
	URL       string   `toml:"url"`
	KeyPrefix string   `toml:"key_prefix"`
	TTL       Duration `toml:"ttl"`
}

// AMQPConfig configures the job queue broker and worker pool.
type AMQPConfig struct {
	URL      string `toml:"url"`
	Queue    string `toml:"queue"`
	Prefetch int    `toml:"prefetch"`
	Workers  int    `toml:"workers"`
}

// MatchingConfig holds the track matcher thresholds.
type MatchingConfig struct {
	PrimaryThreshold float64 `toml:"primary_threshold"`
	AIThreshold      float64 `toml:"ai_threshold"`
	ResultLimit      int     `toml:"result_limit"`
}

// TransferConfig holds orchestrator pacing and the default transfer options.
type TransferConfig struct {
	TrackDelay         Duration `toml:"track_delay"`
	CallTimeout        Duration `toml:"call_timeout"`
	CreateNewPlaylists bool     `toml:"create_new_playlists"`
	OverwriteExisting  bool     `toml:"overwrite_existing"`
	Privacy            string   `toml:"privacy"`
}

// ResolverConfig configures the AI fallback resolver.
type ResolverConfig struct {
	Enabled   bool     `toml:"enabled"`
	OllamaURL string   `toml:"ollama_url"`
	Model     string   `toml:"model"`
	Timeout   Duration `toml:"timeout"`
}

// ReportsConfig configures where final reports are written on disk.
type ReportsConfig struct {
	Dir string `toml:"dir"`
}

// MinioConfig configures report archival to S3-compatible object storage.
type MinioConfig struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Duration wraps [time.Duration] so it can be written as "100ms" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys absent from the file keep their embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv loads a .env file when present and lets environment variables override file values.
//
// A missing .env file is not an error.
func (c *Config) ApplyEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c.Credentials.Spotify.ClientID = getEnv("SPOTIFY_CLIENT_ID", c.Credentials.Spotify.ClientID)
	c.Credentials.Spotify.ClientSecret = getEnv("SPOTIFY_CLIENT_SECRET", c.Credentials.Spotify.ClientSecret)
	c.Credentials.Spotify.RedirectURI = getEnv("SPOTIFY_REDIRECT_URI", c.Credentials.Spotify.RedirectURI)
	c.Credentials.YouTube.APIKey = getEnv("YOUTUBE_API_KEY", c.Credentials.YouTube.APIKey)
	c.Credentials.YouTube.ProxyURL = getEnv("YTMUSIC_PROXY_URL", c.Credentials.YouTube.ProxyURL)
	c.Destination.Kind = getEnv("DESTINATION_KIND", c.Destination.Kind)
	c.Database.Path = getEnv("DATABASE_PATH", c.Database.Path)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.AMQP.URL = getEnv("AMQP_URL", c.AMQP.URL)
	c.Resolver.OllamaURL = getEnv("OLLAMA_URL", c.Resolver.OllamaURL)
	c.Resolver.Model = getEnv("OLLAMA_MODEL", c.Resolver.Model)
	c.Minio.Endpoint = getEnv("MINIO_ENDPOINT", c.Minio.Endpoint)
	c.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", c.Minio.AccessKey)
	c.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", c.Minio.SecretKey)
	c.Minio.Bucket = getEnv("MINIO_BUCKET_NAME", c.Minio.Bucket)

	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SERVER_PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks the values the transfer pipeline depends on.
func (c *Config) Validate() error {
	m := c.Matching
	switch {
	case m.PrimaryThreshold <= 0 || m.PrimaryThreshold > 1:
		return fmt.Errorf("%w: matching.primary_threshold must be in (0, 1]", ErrInvalidConfig)
	case m.AIThreshold <= 0 || m.AIThreshold > m.PrimaryThreshold:
		return fmt.Errorf("%w: matching.ai_threshold must be in (0, primary_threshold]", ErrInvalidConfig)
	case m.ResultLimit <= 0:
		return fmt.Errorf("%w: matching.result_limit must be positive", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Destination.Kind) {
	case DestinationYTMusic, DestinationYouTube:
	default:
		return fmt.Errorf("%w: unknown destination kind %q", ErrInvalidConfig, c.Destination.Kind)
	}

	switch strings.ToUpper(c.Transfer.Privacy) {
	case "PRIVATE", "PUBLIC", "UNLISTED":
	default:
		return fmt.Errorf("%w: transfer.privacy %q", ErrInvalidConfig, c.Transfer.Privacy)
	}

	if c.AMQP.Workers < 1 {
		return fmt.Errorf("%w: amqp.workers must be at least 1", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
