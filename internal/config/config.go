package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type StorageBackend string

const (
	StorageLocal      StorageBackend = "local"
	StorageCloudinary StorageBackend = "cloudinary"
	StorageMinIO      StorageBackend = "minio"
)

type AnalyzerEngine string

const (
	EngineMock AnalyzerEngine = "mock"
	EngineCLIP AnalyzerEngine = "clip"
)

type DatabaseDriver string

const (
	DriverSQLite   DatabaseDriver = "sqlite"
	DriverPostgres DatabaseDriver = "postgres"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer"`
	NATS       NATSConfig       `yaml:"nats"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name  string `yaml:"name"`
	Debug bool   `yaml:"debug"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	// AllowOrigins is a comma-separated list; "*" allows every origin.
	AllowOrigins string `yaml:"allow_origins"`
}

// Origins splits AllowOrigins into trimmed, non-empty entries.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type DatabaseConfig struct {
	Driver   DatabaseDriver `yaml:"driver"`
	Path     string         `yaml:"path"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	Name     string         `yaml:"name"`
	User     string         `yaml:"user"`
	Password string         `yaml:"password"`
	MaxConns int            `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type StorageConfig struct {
	Backend        StorageBackend `yaml:"backend"`
	LocalMediaRoot string         `yaml:"local_media_root"`
	// BaseURL is the public origin of this service, e.g. http://localhost:8000.
	BaseURL     string `yaml:"base_url"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// MaxUploadBytes returns the upload size limit in bytes.
func (s StorageConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) * 1024 * 1024
}

type CloudinaryConfig struct {
	CloudName string `yaml:"cloud_name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Folder    string `yaml:"folder"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	PublicURL string `yaml:"public_url"`
	Folder    string `yaml:"folder"`
}

type AnalyzerConfig struct {
	Engine      AnalyzerEngine `yaml:"engine"`
	ModelsDir   string         `yaml:"models_dir"`
	ONNXLibPath string         `yaml:"onnx_lib_path"`
	LogitScale  float64        `yaml:"logit_scale"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from an optional YAML file and applies environment variable overrides.
// An empty path skips the file and uses environment and defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects selector values outside the supported variant sets.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case StorageLocal, StorageCloudinary, StorageMinIO:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.Analyzer.Engine {
	case EngineMock, EngineCLIP:
	default:
		errs = append(errs, fmt.Errorf("unknown analyzer engine %q", c.Analyzer.Engine))
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	if c.Storage.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("max upload size must be positive, got %d MB", c.Storage.MaxUploadMB))
	}

	return errors.Join(errs...)
}

func setDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "PostOpCare+ Photo Service"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.APIKey == "" {
		cfg.Server.APIKey = "dev-secret-key"
	}
	if cfg.Server.AllowOrigins == "" {
		cfg.Server.AllowOrigins = "*"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./postopcare.db"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageLocal
	}
	if cfg.Storage.LocalMediaRoot == "" {
		cfg.Storage.LocalMediaRoot = "./media"
	}
	if cfg.Storage.MaxUploadMB == 0 {
		cfg.Storage.MaxUploadMB = 15
	}
	if cfg.Cloudinary.Folder == "" {
		cfg.Cloudinary.Folder = "postopcare"
	}
	if cfg.MinIO.Folder == "" {
		cfg.MinIO.Folder = "postopcare"
	}
	if cfg.Analyzer.Engine == "" {
		cfg.Analyzer.Engine = EngineMock
	}
	if cfg.Analyzer.ModelsDir == "" {
		cfg.Analyzer.ModelsDir = "./models/clip-vit-base-patch32"
	}
	if cfg.Analyzer.LogitScale == 0 {
		cfg.Analyzer.LogitScale = 100
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.App.Debug {
			cfg.Logging.Level = "debug"
		}
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PHOTO_APP_NAME"); v != "" {
		cfg.App.Name = v
	}
	if v := os.Getenv("PHOTO_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.App.Debug = b
		}
	}
	if v := os.Getenv("PHOTO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PHOTO_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PHOTO_ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = v
	}
	if v := os.Getenv("PHOTO_DB_DRIVER"); v != "" {
		cfg.Database.Driver = DatabaseDriver(v)
	}
	if v := os.Getenv("PHOTO_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PHOTO_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PHOTO_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PHOTO_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PHOTO_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PHOTO_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PHOTO_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = StorageBackend(v)
	}
	if v := os.Getenv("PHOTO_LOCAL_MEDIA_ROOT"); v != "" {
		cfg.Storage.LocalMediaRoot = v
	}
	if v := os.Getenv("PHOTO_BASE_URL"); v != "" {
		cfg.Storage.BaseURL = v
	}
	if v := os.Getenv("PHOTO_MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxUploadMB = n
		}
	}
	if v := os.Getenv("PHOTO_CLOUDINARY_CLOUD_NAME"); v != "" {
		cfg.Cloudinary.CloudName = v
	}
	if v := os.Getenv("PHOTO_CLOUDINARY_API_KEY"); v != "" {
		cfg.Cloudinary.APIKey = v
	}
	if v := os.Getenv("PHOTO_CLOUDINARY_API_SECRET"); v != "" {
		cfg.Cloudinary.APISecret = v
	}
	if v := os.Getenv("PHOTO_CLOUDINARY_FOLDER"); v != "" {
		cfg.Cloudinary.Folder = v
	}
	if v := os.Getenv("PHOTO_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PHOTO_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PHOTO_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PHOTO_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PHOTO_MINIO_PUBLIC_URL"); v != "" {
		cfg.MinIO.PublicURL = v
	}
	if v := os.Getenv("PHOTO_ANALYZER_ENGINE"); v != "" {
		cfg.Analyzer.Engine = AnalyzerEngine(v)
	}
	if v := os.Getenv("PHOTO_MODELS_DIR"); v != "" {
		cfg.Analyzer.ModelsDir = v
	}
	if v := os.Getenv("PHOTO_ONNX_LIB_PATH"); v != "" {
		cfg.Analyzer.ONNXLibPath = v
	}
	if v := os.Getenv("PHOTO_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PHOTO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
