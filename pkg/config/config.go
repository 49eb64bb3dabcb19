package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Repository backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Env       string `validate:"oneof=development production test"`
	Port      int    `validate:"min=0,max=65535"`
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	JWT      JWTConfig
	Log      LogConfig
	Portal   PortalConfig
	Monitor  MonitorConfig
	Push     PushConfig
}

type DatabaseConfig struct {
	Backend      string `validate:"oneof=postgres memory"`
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
	ConnectTries uint
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// CORSConfig lists browser origins allowed to read the ops API.
type CORSConfig struct {
	AllowedOrigins []string
}

// JWTConfig verifies admin tokens for the ops API.
type JWTConfig struct {
	Secret string
	Issuer string
}

type LogConfig struct {
	Level  string
	Format string
}

// PortalConfig describes the registration portal and the fixed term parameters
// posted with every request.
type PortalConfig struct {
	SearchURL      string `validate:"required,url"`
	CatalogURL     string `validate:"required,url"`
	Year           string `validate:"required"`
	Semester       string `validate:"required"`
	SectionGroup   string
	ParamsFile     string
	ExtraParams    map[string]string
	UserAgent      string
	CatalogTimeout time.Duration `validate:"gt=0"`
	PageTimeout    time.Duration `validate:"gt=0"`
	PageRowSel     string        `validate:"required"`
	CatalogRowSel  string        `validate:"required"`
}

// MonitorConfig governs the polling cadence.
type MonitorConfig struct {
	IntervalMinutes int  `validate:"min=0,max=20"`
	ResyncEvery     int  `validate:"min=1"`
	MaxPage         int  `validate:"min=1"`
	Workers         int  `validate:"min=1,max=32"`
	DispatchWorkers int  `validate:"min=1"`
	OldStudentMode  bool
}

// Interval returns the sleep between cycles.
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalMinutes) * time.Minute
}

// PushConfig configures the push gateway used for seat notifications.
type PushConfig struct {
	Endpoint    string `validate:"omitempty,url"`
	AccessToken string
	Timeout     time.Duration `validate:"gt=0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Backend:      strings.ToLower(v.GetString("REPOSITORY_BACKEND")),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
		ConnectTries: v.GetUint("DB_CONNECT_TRIES"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS"))}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Portal = PortalConfig{
		SearchURL:      v.GetString("PORTAL_SEARCH_URL"),
		CatalogURL:     v.GetString("PORTAL_CATALOG_URL"),
		Year:           v.GetString("PORTAL_YEAR"),
		Semester:       v.GetString("PORTAL_SEMESTER"),
		SectionGroup:   v.GetString("PORTAL_SECTION_GROUP"),
		ParamsFile:     v.GetString("PORTAL_PARAMS_FILE"),
		UserAgent:      v.GetString("PORTAL_USER_AGENT"),
		CatalogTimeout: parseDuration(v.GetString("PORTAL_CATALOG_TIMEOUT"), 10*time.Second),
		PageTimeout:    parseDuration(v.GetString("PORTAL_PAGE_TIMEOUT"), 3*time.Second),
		PageRowSel:     v.GetString("PORTAL_PAGE_ROW_SELECTOR"),
		CatalogRowSel:  v.GetString("PORTAL_CATALOG_ROW_SELECTOR"),
	}
	if cfg.Portal.ParamsFile != "" {
		extra, err := loadParams(cfg.Portal.ParamsFile)
		if err != nil {
			return nil, err
		}
		cfg.Portal.ExtraParams = extra
	}

	cfg.Monitor = MonitorConfig{
		IntervalMinutes: v.GetInt("MONITOR_INTERVAL_MINUTES"),
		ResyncEvery:     v.GetInt("MONITOR_RESYNC_EVERY"),
		MaxPage:         v.GetInt("MONITOR_MAX_PAGE"),
		Workers:         v.GetInt("MONITOR_WORKERS"),
		DispatchWorkers: v.GetInt("MONITOR_DISPATCH_WORKERS"),
		OldStudentMode:  v.GetBool("MONITOR_OLD_STUDENT_MODE"),
	}

	cfg.Push = PushConfig{
		Endpoint:    v.GetString("PUSH_ENDPOINT"),
		AccessToken: v.GetString("PUSH_ACCESS_TOKEN"),
		Timeout:     parseDuration(v.GetString("PUSH_TIMEOUT"), 5*time.Second),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks operator-settable bounds.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("REPOSITORY_BACKEND", BackendPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "seatwatch")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("DB_CONNECT_TRIES", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "seatwatch")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PORTAL_SEARCH_URL", "https://sugang.snu.ac.kr/sugang/cc/cc100InterfaceSrch.action")
	v.SetDefault("PORTAL_CATALOG_URL", "https://sugang.snu.ac.kr/sugang/cc/cc100InterfaceExcel.action")
	v.SetDefault("PORTAL_YEAR", "2019")
	v.SetDefault("PORTAL_SEMESTER", "U000200002U000300002")
	v.SetDefault("PORTAL_SECTION_GROUP", "")
	v.SetDefault("PORTAL_PARAMS_FILE", "")
	v.SetDefault("PORTAL_USER_AGENT", "seatwatch/1.0")
	v.SetDefault("PORTAL_CATALOG_TIMEOUT", "10s")
	v.SetDefault("PORTAL_PAGE_TIMEOUT", "3s")
	v.SetDefault("PORTAL_PAGE_ROW_SELECTOR", "table.tbl_basic tbody tr")
	v.SetDefault("PORTAL_CATALOG_ROW_SELECTOR", "table tr")

	v.SetDefault("MONITOR_INTERVAL_MINUTES", 1)
	v.SetDefault("MONITOR_RESYNC_EVERY", 7)
	v.SetDefault("MONITOR_MAX_PAGE", 25)
	v.SetDefault("MONITOR_WORKERS", 5)
	v.SetDefault("MONITOR_DISPATCH_WORKERS", 8)
	v.SetDefault("MONITOR_OLD_STUDENT_MODE", false)

	v.SetDefault("PUSH_ENDPOINT", "")
	v.SetDefault("PUSH_ACCESS_TOKEN", "")
	v.SetDefault("PUSH_TIMEOUT", "5s")
}

// loadParams reads a flat JSON object of additional form parameters.
func loadParams(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portal params %s: %w", path, err)
	}
	params := make(map[string]string)
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("decode portal params %s: %w", path, err)
	}
	return params, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
