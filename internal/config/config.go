package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Supabase
	SupabaseURL            string `mapstructure:"supabase_url"`
	SupabasePublishableKey string `mapstructure:"supabase_publishable_key"`
	SupabaseJWTSecret      string `mapstructure:"supabase_jwt_secret"`
	SupabaseStorageBucket  string `mapstructure:"supabase_storage_bucket"`
	TemplatesBucket        string `mapstructure:"templates_bucket"`
	SignedURLTTL           int    `mapstructure:"signed_url_ttl"`

	// Offline storage
	LocalStorageDir    string `mapstructure:"local_storage_dir"`
	LocalStorageSecret string `mapstructure:"local_storage_secret"`

	// Database
	DatabaseURL string `mapstructure:"database_url"`

	// Server
	Port        string `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
	BaseURL     string `mapstructure:"base_url"`
	LogLevel    string `mapstructure:"log_level"`
	BoothID     string `mapstructure:"booth_id"`

	// Camera
	CameraDevice      string `mapstructure:"camera_device"`
	CameraInputFormat string `mapstructure:"camera_input_format"`
	CameraWidth       int    `mapstructure:"camera_width"`
	CameraHeight      int    `mapstructure:"camera_height"`
	CameraFPS         int    `mapstructure:"camera_fps"`
	FFmpegPath        string `mapstructure:"ffmpeg_path"`

	// Session
	CountdownSeconds int           `mapstructure:"countdown_seconds"`
	PostRoll         time.Duration `mapstructure:"post_roll"`
	FinishTimeout    time.Duration `mapstructure:"finish_timeout"`
	SessionTimeout   time.Duration `mapstructure:"session_timeout"`
	UploadTimeout    time.Duration `mapstructure:"upload_timeout"`
	GIFDelay         time.Duration `mapstructure:"gif_delay"`

	// Delivery
	EmailEndpoint     string `mapstructure:"email_endpoint"`
	EmailAPIKey       string `mapstructure:"email_api_key"`
	PrinterConfigFile string `mapstructure:"printer_config_file"`
	PrintDPI          int    `mapstructure:"print_dpi"`
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/photobooth")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("supabase_url", "")
	v.SetDefault("supabase_publishable_key", "")
	v.SetDefault("supabase_jwt_secret", "")
	v.SetDefault("supabase_storage_bucket", "captures")
	v.SetDefault("templates_bucket", "templates")
	v.SetDefault("signed_url_ttl", 3600)

	v.SetDefault("local_storage_dir", "uploads")
	v.SetDefault("local_storage_secret", "")

	v.SetDefault("database_url", "")

	v.SetDefault("port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("booth_id", "booth-1")

	v.SetDefault("camera_device", "")
	v.SetDefault("camera_input_format", "v4l2")
	v.SetDefault("camera_width", 1280)
	v.SetDefault("camera_height", 720)
	v.SetDefault("camera_fps", 30)
	v.SetDefault("ffmpeg_path", "")

	v.SetDefault("countdown_seconds", 3)
	v.SetDefault("post_roll", time.Second)
	v.SetDefault("finish_timeout", 10*time.Second)
	v.SetDefault("session_timeout", 0)
	v.SetDefault("upload_timeout", 2*time.Minute)
	v.SetDefault("gif_delay", 500*time.Millisecond)

	v.SetDefault("email_endpoint", "")
	v.SetDefault("email_api_key", "")
	v.SetDefault("printer_config_file", "printer-settings.json")
	v.SetDefault("print_dpi", 300)
}

// Validate checks structural values. Supabase settings are optional; without
// them the kiosk keeps records in memory and assets under LOCAL_STORAGE_DIR.
func (c *Config) Validate() error {
	var errs []error

	if c.SupabaseURL != "" && c.SupabasePublishableKey == "" {
		errs = append(errs, fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required when SUPABASE_URL is set"))
	}
	if c.SignedURLTTL <= 0 {
		errs = append(errs, fmt.Errorf("SIGNED_URL_TTL must be positive"))
	}
	if c.CountdownSeconds < 1 || c.CountdownSeconds > 10 {
		errs = append(errs, fmt.Errorf("COUNTDOWN_SECONDS must be between 1 and 10, got %d", c.CountdownSeconds))
	}
	if c.PostRoll < 0 {
		errs = append(errs, fmt.Errorf("POST_ROLL must not be negative"))
	}
	if c.FinishTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FINISH_TIMEOUT must be positive"))
	}
	if c.SessionTimeout < 0 {
		errs = append(errs, fmt.Errorf("SESSION_TIMEOUT must not be negative"))
	}
	if c.UploadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_TIMEOUT must be positive"))
	}
	if c.GIFDelay <= 0 {
		errs = append(errs, fmt.Errorf("GIF_DELAY must be positive"))
	}
	if c.CameraWidth <= 0 || c.CameraHeight <= 0 {
		errs = append(errs, fmt.Errorf("CAMERA_WIDTH and CAMERA_HEIGHT must be positive"))
	}
	if !c.UseSupabase() && c.LocalStorageDir == "" {
		errs = append(errs, fmt.Errorf("LOCAL_STORAGE_DIR is required without Supabase"))
	}
	if c.PrintDPI <= 0 {
		errs = append(errs, fmt.Errorf("PRINT_DPI must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) UseSupabase() bool {
	return c.SupabaseURL != "" && c.SupabasePublishableKey != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LocalSigningKey is the key for local storage links. It falls back to the
// Supabase JWT secret so one secret can serve both.
func (c *Config) LocalSigningKey() []byte {
	if c.LocalStorageSecret != "" {
		return []byte(c.LocalStorageSecret)
	}
	return []byte(c.SupabaseJWTSecret)
}
