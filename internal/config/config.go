package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	LogMode bool   `mapstructure:"log_mode"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpireHours int    `mapstructure:"expire_hours"`
	CookieName  string `mapstructure:"cookie_name"`
}

func (j JWTConfig) TTL() time.Duration {
	return time.Duration(j.ExpireHours) * time.Hour
}

type SecurityConfig struct {
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
	EncryptionKey string        `mapstructure:"encryption_key"`
	ResetTokenTTL time.Duration `mapstructure:"reset_token_ttl"`

	// UniformResetResponse hides whether an email is registered when a
	// password reset is requested.
	UniformResetResponse bool          `mapstructure:"uniform_reset_response"`
	MaxLoginAttempts     int           `mapstructure:"max_login_attempts"`
	LockoutDuration      time.Duration `mapstructure:"lockout_duration"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ReceiptsConfig struct {
	Dir         string `mapstructure:"dir"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type AppSubConfig struct {
	PageSize    int `mapstructure:"page_size"`
	MaxPageSize int `mapstructure:"max_page_size"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Security  SecurityConfig  `mapstructure:"security"`
	Log       LogConfig       `mapstructure:"log"`
	Receipts  ReceiptsConfig  `mapstructure:"receipts"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
	App       AppSubConfig    `mapstructure:"app"`
}

const EnvPrefix = "FAMFIN"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cookie_secure", false)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "data/family-finance.db")
	v.SetDefault("database.log_mode", false)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "family-finance")
	v.SetDefault("jwt.expire_hours", 720)
	v.SetDefault("jwt.cookie_name", "token")

	v.SetDefault("security.bcrypt_cost", 10)
	v.SetDefault("security.encryption_key", "")
	v.SetDefault("security.reset_token_ttl", 10*time.Minute)
	v.SetDefault("security.uniform_reset_response", false)
	v.SetDefault("security.max_login_attempts", 5)
	v.SetDefault("security.lockout_duration", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("receipts.dir", "data/receipts")
	v.SetDefault("receipts.max_upload_mb", 10)

	v.SetDefault("rate_limit.requests", 300)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "family-finance")

	v.SetDefault("app.page_size", 10)
	v.SetDefault("app.max_page_size", 100)
}

// Load builds a Config from defaults, an optional YAML file, a .env file
// and FAMFIN_* environment variables, in increasing precedence.
// An empty path looks for ./config.yaml and tolerates its absence.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	// e.g. FAMFIN_JWT_SECRET overrides jwt.secret
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d: must be between 1 and 65535", c.Server.Port))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		problems = append(problems, fmt.Sprintf("server.mode %q: must be debug, release or test", c.Server.Mode))
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	if len(c.JWT.Secret) < 16 {
		problems = append(problems, "jwt.secret must be at least 16 characters")
	}
	if c.JWT.ExpireHours <= 0 {
		problems = append(problems, "jwt.expire_hours must be positive")
	}
	if c.JWT.CookieName == "" {
		problems = append(problems, "jwt.cookie_name is required")
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		problems = append(problems, fmt.Sprintf("security.bcrypt_cost %d: must be between 4 and 31", c.Security.BcryptCost))
	}
	if c.Security.EncryptionKey == "" {
		problems = append(problems, "security.encryption_key is required")
	}
	if c.Security.ResetTokenTTL <= 0 {
		problems = append(problems, "security.reset_token_ttl must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q: must be debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q: must be text or json", c.Log.Format))
	}
	if c.Receipts.Dir == "" {
		problems = append(problems, "receipts.dir is required")
	}
	if c.Receipts.MaxUploadMB <= 0 {
		problems = append(problems, "receipts.max_upload_mb must be positive")
	}
	if c.App.PageSize <= 0 || c.App.MaxPageSize < c.App.PageSize {
		problems = append(problems, "app.page_size must be positive and not above app.max_page_size")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
