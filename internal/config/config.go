package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonathanpberger/typingpool/internal/domain"
)

// DefaultFile is the config file read when no path is given.
const DefaultFile = "~/.typingpool"

type Config struct {
	Transcripts string            `mapstructure:"transcripts"`
	Cache       string            `mapstructure:"cache"`
	Templates   string            `mapstructure:"templates"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Assign      AssignConfig      `mapstructure:"assign"`
	Fields      FieldsConfig      `mapstructure:"fields"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Server      ServerConfig      `mapstructure:"server"`

	// Path is the file the config was read from, empty when none was found.
	Path string `mapstructure:"-"`
}

type StorageConfig struct {
	Type        string `mapstructure:"type"`
	Endpoint    string `mapstructure:"endpoint"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	UseSSL      bool   `mapstructure:"use_ssl"`
	Bucket      string `mapstructure:"bucket"`
	Region      string `mapstructure:"region"`
	PublicURL   string `mapstructure:"public_url"`
	Concurrency int    `mapstructure:"concurrency"`
}

type MarketplaceConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	SandboxEndpoint string        `mapstructure:"sandbox_endpoint"`
	Key             string        `mapstructure:"key"`
	Secret          string        `mapstructure:"secret"`
	Sandbox         bool          `mapstructure:"sandbox"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryCount      int           `mapstructure:"retry_count"`
}

// AssignConfig holds the defaults for publishing jobs. Durations and
// qualifications are already parsed; use the Set methods for overrides so
// that the same validation applies.
type AssignConfig struct {
	Title       string                 `mapstructure:"title"`
	Description string                 `mapstructure:"description"`
	Reward      string                 `mapstructure:"reward"`
	Currency    string                 `mapstructure:"currency"`
	Keywords    []string               `mapstructure:"keywords"`
	Deadline    time.Duration          `mapstructure:"deadline"`
	Lifetime    time.Duration          `mapstructure:"lifetime"`
	Approval    time.Duration          `mapstructure:"approval"`
	Qualify     []domain.Qualification `mapstructure:"qualify"`
	Template    string                 `mapstructure:"template"`
}

type FieldsConfig struct {
	ProjectID     string `mapstructure:"project_id"`
	AudioURL      string `mapstructure:"audio_url"`
	Transcription string `mapstructure:"transcription"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	URL             string        `mapstructure:"url"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// Load reads configuration from configPath, or from DefaultFile when empty.
// A missing default file is not an error; a missing explicit file is.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("typingpool")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("storage.access_key", "TYPINGPOOL_STORAGE_ACCESS_KEY", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.secret_key", "TYPINGPOOL_STORAGE_SECRET_KEY", "AWS_SECRET_ACCESS_KEY")
	_ = v.BindEnv("storage.region", "TYPINGPOOL_STORAGE_REGION", "AWS_REGION")
	_ = v.BindEnv("marketplace.key", "TYPINGPOOL_MARKETPLACE_KEY")
	_ = v.BindEnv("marketplace.secret", "TYPINGPOOL_MARKETPLACE_SECRET")

	path := configPath
	if path == "" {
		if p := ExpandPath(DefaultFile); fileExists(p) {
			path = p
		}
	} else {
		path = ExpandPath(path)
		if !fileExists(path) {
			return nil, fmt.Errorf("no such config file %s", path)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Path = path
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transcripts", "~/transcripts")
	v.SetDefault("cache", "~/.typingpool.cache")
	v.SetDefault("storage.type", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.concurrency", 4)
	v.SetDefault("marketplace.endpoint", "https://marketplace.example.com/api/v1")
	v.SetDefault("marketplace.sandbox_endpoint", "https://sandbox.marketplace.example.com/api/v1")
	v.SetDefault("marketplace.timeout", "60s")
	v.SetDefault("marketplace.retry_count", 3)
	v.SetDefault("assign.title", "Transcribe a short audio clip")
	v.SetDefault("assign.description", "Listen to a short audio clip and type what you hear.")
	v.SetDefault("assign.reward", "0.75")
	v.SetDefault("assign.currency", "USD")
	v.SetDefault("assign.keywords", []string{"transcription", "audio", "mp3"})
	v.SetDefault("assign.deadline", "3h")
	v.SetDefault("assign.lifetime", "2d")
	v.SetDefault("assign.approval", "1d")
	v.SetDefault("assign.qualify", []string{"approval_rate >= 95"})
	defaults := domain.DefaultIdentifierFields()
	v.SetDefault("fields.project_id", defaults.ProjectID)
	v.SetDefault("fields.audio_url", defaults.AudioURL)
	v.SetDefault("fields.transcription", defaults.Transcription)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
}

var (
	durationType      = reflect.TypeOf(time.Duration(0))
	qualificationType = reflect.TypeOf(domain.Qualification{})
)

// DecodeHook converts timespec strings to durations and qualification strings
// to domain.Qualification while the config tree is decoded.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		timespecHook,
		qualificationHook,
		mapstructure.StringToSliceHookFunc(","),
	)
}

func timespecHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType {
		return data, nil
	}
	switch val := data.(type) {
	case string:
		d, err := ParseTimespec(val)
		if err != nil {
			// Go duration strings such as "1m30s" or "500ms"
			if gd, gerr := time.ParseDuration(strings.TrimSpace(val)); gerr == nil {
				return gd, nil
			}
			return nil, err
		}
		return d, nil
	case int:
		return time.Duration(val) * time.Second, nil
	case int64:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	}
	return data, nil
}

func qualificationHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != qualificationType || from.Kind() != reflect.String {
		return data, nil
	}
	return ParseQualification(data.(string))
}

func (c *Config) normalize() error {
	c.Transcripts = ExpandPath(c.Transcripts)
	c.Cache = ExpandPath(c.Cache)
	c.Templates = ExpandPath(c.Templates)
	c.Assign.Template = ExpandPath(c.Assign.Template)
	c.Database.Path = ExpandPath(c.Database.Path)
	if c.Database.Path == "" {
		c.Database.Path = c.Cache
	}
	c.Storage.PublicURL = strings.TrimSuffix(c.Storage.PublicURL, "/")
	c.Marketplace.Endpoint = strings.TrimSuffix(c.Marketplace.Endpoint, "/")
	c.Marketplace.SandboxEndpoint = strings.TrimSuffix(c.Marketplace.SandboxEndpoint, "/")
	return c.Assign.SetReward(c.Assign.Reward)
}

// DSN returns the connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return d.URL
	}
	return d.Path
}

// Identifiers returns the identifier field names used on task pages.
func (f FieldsConfig) Identifiers() domain.IdentifierFields {
	return domain.IdentifierFields{
		ProjectID:     f.ProjectID,
		AudioURL:      f.AudioURL,
		Transcription: f.Transcription,
	}
}

// MarketplaceURL returns the endpoint to use, honoring the sandbox switch.
func (m MarketplaceConfig) MarketplaceURL() string {
	if m.Sandbox {
		return m.SandboxEndpoint
	}
	return m.Endpoint
}

// ValidateMarketplace checks that credentials are present.
func (c *Config) ValidateMarketplace() error {
	if c.Marketplace.MarketplaceURL() == "" {
		return errors.New("marketplace: endpoint is required")
	}
	if c.Marketplace.Key == "" || c.Marketplace.Secret == "" {
		return errors.New("marketplace: key and secret are required (set in config or TYPINGPOOL_MARKETPLACE_KEY/SECRET)")
	}
	return nil
}

// ValidateStorage checks that the asset host is configured.
func (c *Config) ValidateStorage() error {
	if c.Storage.Bucket == "" {
		return errors.New("storage: bucket is required")
	}
	if c.Storage.Endpoint != "" && c.Storage.PublicURL == "" {
		return errors.New("storage: public_url is required for a custom endpoint")
	}
	return nil
}

var rewardPattern = regexp.MustCompile(`^(\d+(\.\d+)?|\d*\.\d+)$`)

// SetReward validates and sets the per-job reward amount.
func (a *AssignConfig) SetReward(amount string) error {
	amount = strings.TrimPrefix(strings.TrimSpace(amount), "$")
	if !rewardPattern.MatchString(amount) {
		return &domain.ArgumentError{Field: "reward", Value: amount, Reason: "format must be N.NN"}
	}
	a.Reward = amount
	return nil
}

// SetTimespec sets one of deadline, lifetime or approval from a timespec.
func (a *AssignConfig) SetTimespec(field, spec string) error {
	d, err := ParseTimespec(spec)
	if err != nil {
		return err
	}
	switch field {
	case "deadline":
		a.Deadline = d
	case "lifetime":
		a.Lifetime = d
	case "approval":
		a.Approval = d
	default:
		return &domain.ArgumentError{Field: "timespec field", Value: field, Reason: "unknown field"}
	}
	return nil
}

// SetQualifications replaces the configured qualifications.
func (a *AssignConfig) SetQualifications(specs []string) error {
	quals := make([]domain.Qualification, 0, len(specs))
	for _, spec := range specs {
		q, err := ParseQualification(spec)
		if err != nil {
			return err
		}
		quals = append(quals, q)
	}
	a.Qualify = quals
	return nil
}

// Policy returns the publish policy described by the config.
func (a *AssignConfig) Policy() domain.Policy {
	return domain.Policy{
		Title:          a.Title,
		Description:    a.Description,
		Reward:         domain.Reward{Amount: a.Reward, Currency: a.Currency},
		Keywords:       append([]string(nil), a.Keywords...),
		Qualifications: append([]domain.Qualification(nil), a.Qualify...),
		Deadline:       a.Deadline,
		Lifetime:       a.Lifetime,
		Approval:       a.Approval,
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) string {
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
