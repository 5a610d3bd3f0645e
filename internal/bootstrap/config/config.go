package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"docproc/internal/bootstrap/logging"
	"docproc/internal/errs"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Processing ProcessingConfig `mapstructure:"processing"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type OpenAIConfig struct {
	APIKey      string `mapstructure:"api_key"`
	VisionModel string `mapstructure:"vision_model"`
	BaseURL     string `mapstructure:"base_url"`
}

type StorageConfig struct {
	UploadDir string `mapstructure:"upload_dir"`
	ExportDir string `mapstructure:"export_dir"`
}

type ProcessingConfig struct {
	MaxFileSize         int64   `mapstructure:"max_file_size"`
	AllowedExtensions   string  `mapstructure:"allowed_extensions"`
	MaxConcurrent       int     `mapstructure:"max_concurrent"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	ExtractionTimeout   int     `mapstructure:"extraction_timeout"`
	RetryAttempts       int     `mapstructure:"retry_attempts"`
	RenderDPI           int     `mapstructure:"render_dpi"`
	PdftoppmPath        string  `mapstructure:"pdftoppm_path"`
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (p ProcessingConfig) Timeout() time.Duration {
	return time.Duration(p.ExtractionTimeout) * time.Second
}

// AllowedExtensionList splits the comma separated extension string.
func (p ProcessingConfig) AllowedExtensionList() []string {
	parts := strings.Split(p.AllowedExtensions, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		out = append(out, ext)
	}
	return out
}

// ExtensionAllowed reports whether the filename carries a permitted extension.
func (p ProcessingConfig) ExtensionAllowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range p.AllowedExtensionList() {
		if ext == allowed {
			return true
		}
	}
	return false
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// OPENAI_API_KEY is the conventional variable name; honor it directly.
	_ = v.BindEnv("openai.api_key", "DP_OPENAI_API_KEY", "OPENAI_API_KEY")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("vision_model", cfg.OpenAI.VisionModel),
	)

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if cfg.Processing.MaxFileSize <= 0 {
		return errors.New("processing.max_file_size must be positive")
	}
	if cfg.Processing.MaxConcurrent <= 0 {
		return errors.New("processing.max_concurrent must be positive")
	}
	if cfg.Processing.ConfidenceThreshold < 0 || cfg.Processing.ConfidenceThreshold > 1 {
		return errors.New("processing.confidence_threshold must be within [0,1]")
	}
	if len(cfg.Processing.AllowedExtensionList()) == 0 {
		return errors.New("processing.allowed_extensions must name at least one extension")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "docproc")
	v.SetDefault("app.env", "local")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/docproc.sqlite")

	v.SetDefault("openai.vision_model", "gpt-4o")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("storage.upload_dir", "data/uploads")
	v.SetDefault("storage.export_dir", "data/exports")

	v.SetDefault("processing.max_file_size", 10*1024*1024)
	v.SetDefault("processing.allowed_extensions", "pdf,png,jpg,jpeg,tiff,bmp")
	v.SetDefault("processing.max_concurrent", 5)
	v.SetDefault("processing.confidence_threshold", 0.7)
	v.SetDefault("processing.extraction_timeout", 120)
	v.SetDefault("processing.retry_attempts", 3)
	v.SetDefault("processing.render_dpi", 300)
	v.SetDefault("processing.pdftoppm_path", "pdftoppm")
}
