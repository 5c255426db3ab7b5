package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration required by the gateway process.
// Values come from env, then from the optional CONFIG_FILE (YAML, flat
// ENV_STYLE keys) for anything env leaves unset.
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Twilio     TwilioConfig
	Classifier ClassifierConfig
	Playout    PlayoutConfig
	Recordings RecordingsConfig
	RabbitMQ   RabbitMQConfig
	Workers    WorkersConfig
}

type AppConfig struct {
	Env  string
	Port int

	// Password is the shared secret for browser-triggered operations.
	Password string

	// PublicBaseURL is the externally visible origin (e.g. https://api.wbor.org/twilio).
	// It is used to rebuild webhook URLs for signature checks and for recording links.
	PublicBaseURL string

	// SendRatePerMinute caps authorized password-protected requests per client IP.
	SendRatePerMinute int
}

type DBConfig struct {
	// Driver is postgres or sqlite.
	Driver string

	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	SQLitePath string
}

type RedisConfig struct {
	// Host is optional. Without it, ban list and callback claims are kept in process.
	Host string
	Port int
	DB   int
}

type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	PhoneNumber       string
	ValidateSignature bool

	// LookupCallerName adds a CNAM lookup (billed per request) to each
	// inbound text.
	LookupCallerName bool
}

type ClassifierConfig struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type PlayoutConfig struct {
	URL           string
	AutomationURL string
	Timeout       time.Duration
	AutoReply     bool
}

type RecordingsConfig struct {
	Dir             string
	Format          string
	DownloadTimeout time.Duration
	LinkSecret      string
	LinkTTL         time.Duration
}

type RabbitMQConfig struct {
	// URL is optional; events are dropped when it is empty.
	URL      string
	Exchange string

	// OutgoingQueue receives source.twilio.sms.outgoing requests from other
	// station services. The consumer runs whenever URL is set.
	OutgoingQueue string
}

type WorkersConfig struct {
	Concurrency int
}

// Load reads .env (if present), CONFIG_FILE (if set) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	return load(src)
}

func load(src source) (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = src.str("APP_ENV")
	c.App.Port, parseErrs = intOr(src, "APP_PORT", 5000, parseErrs)
	c.App.Password = src.raw("APP_PASSWORD")
	c.App.PublicBaseURL = strings.TrimRight(src.str("PUBLIC_BASE_URL"), "/")
	c.App.SendRatePerMinute, parseErrs = intOr(src, "SEND_RATE_PER_MINUTE", 30, parseErrs)

	c.DB.Driver = src.str("DB_DRIVER")
	if c.DB.Driver == "" {
		c.DB.Driver = "postgres"
	}
	c.DB.Host = src.str("DB_HOST")
	c.DB.Port, parseErrs = intOr(src, "DB_PORT", 5432, parseErrs)
	c.DB.User = src.str("DB_USER")
	c.DB.Password = src.raw("DB_PASSWORD")
	c.DB.Name = src.str("DB_NAME")
	c.DB.SSLMode = src.str("DB_SSLMODE")
	c.DB.SQLitePath = src.str("SQLITE_PATH")

	c.Redis.Host = src.str("REDIS_HOST")
	c.Redis.Port, parseErrs = intOr(src, "REDIS_PORT", 6379, parseErrs)
	c.Redis.DB, parseErrs = intOr(src, "REDIS_DB", 0, parseErrs)

	c.Twilio.AccountSID = src.str("TWILIO_ACCOUNT_SID")
	c.Twilio.AuthToken = src.raw("TWILIO_AUTH_TOKEN")
	c.Twilio.PhoneNumber = src.str("TWILIO_PHONE_NUMBER")
	c.Twilio.ValidateSignature, parseErrs = boolOr(src, "TWILIO_VALIDATE_SIGNATURE", true, parseErrs)
	c.Twilio.LookupCallerName, parseErrs = boolOr(src, "TWILIO_LOOKUP_CALLER_NAME", true, parseErrs)

	c.Classifier.URL = strings.TrimRight(src.str("CLASSIFIER_URL"), "/")
	c.Classifier.APIKey = src.raw("CLASSIFIER_API_KEY")
	c.Classifier.Model = src.str("CLASSIFIER_MODEL")
	c.Classifier.Timeout, parseErrs = durationOr(src, "CLASSIFIER_TIMEOUT", 10*time.Second, parseErrs)

	c.Playout.URL = src.str("PLAYOUT_URL")
	c.Playout.AutomationURL = src.str("AUTOMATION_URL")
	c.Playout.Timeout, parseErrs = durationOr(src, "PLAYOUT_TIMEOUT", 5*time.Second, parseErrs)
	c.Playout.AutoReply, parseErrs = boolOr(src, "AUTO_REPLY", false, parseErrs)

	c.Recordings.Dir = src.str("RECORDINGS_DIR")
	c.Recordings.Format = src.str("RECORDING_FORMAT")
	c.Recordings.DownloadTimeout, parseErrs = durationOr(src, "DOWNLOAD_TIMEOUT", 2*time.Minute, parseErrs)
	c.Recordings.LinkSecret = src.raw("RECORDING_LINK_SECRET")
	c.Recordings.LinkTTL, parseErrs = durationOr(src, "RECORDING_LINK_TTL", 15*time.Minute, parseErrs)

	c.RabbitMQ.URL = src.raw("RABBITMQ_URL")
	c.RabbitMQ.Exchange = src.str("RABBITMQ_EXCHANGE")
	c.RabbitMQ.OutgoingQueue = src.str("RABBITMQ_OUTGOING_QUEUE")

	c.Workers.Concurrency, parseErrs = intOr(src, "WORKER_CONCURRENCY", 16, parseErrs)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.DB.SSLMode == "" && !c.IsProduction() {
		// Local-friendly default; production must be explicit.
		c.DB.SSLMode = "disable"
	}
	if c.DB.SQLitePath == "" {
		c.DB.SQLitePath = "./data/wbor-twilio.db"
	}
	if c.Recordings.Dir == "" {
		c.Recordings.Dir = "./data/recordings"
	}
	if c.Recordings.Format == "" {
		c.Recordings.Format = "mp3"
	}
	if c.Recordings.LinkSecret == "" {
		c.Recordings.LinkSecret = c.App.Password
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "source_exchange"
	}
	if c.RabbitMQ.OutgoingQueue == "" {
		c.RabbitMQ.OutgoingQueue = "outgoing_sms"
	}
	if c.Classifier.Model == "" {
		c.Classifier.Model = "gpt-4o-mini"
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.Password == "" {
		errs = append(errs, errors.New("APP_PASSWORD is required"))
	}
	if c.App.SendRatePerMinute <= 0 {
		errs = append(errs, fmt.Errorf("SEND_RATE_PER_MINUTE must be > 0, got %d", c.App.SendRatePerMinute))
	}

	switch c.DB.Driver {
	case "postgres":
		if c.DB.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required"))
		}
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required"))
		}
		if c.DB.SSLMode == "" {
			// Load defaults it to "disable" outside production.
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				errs = append(errs, errors.New("DB_SSLMODE is required when DB_DRIVER=postgres"))
			}
		} else if !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	case "sqlite":
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_DRIVER=sqlite is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DB.Driver))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.PhoneNumber == "" {
		errs = append(errs, errors.New("TWILIO_PHONE_NUMBER is required"))
	}
	if c.Twilio.ValidateSignature && c.App.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required when TWILIO_VALIDATE_SIGNATURE is enabled"))
	}
	if c.App.PublicBaseURL != "" && !isAbsURL(c.App.PublicBaseURL) {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an absolute URL, got %q", c.App.PublicBaseURL))
	}

	if !isAbsURL(c.Classifier.URL) {
		errs = append(errs, fmt.Errorf("CLASSIFIER_URL must be an absolute URL, got %q", c.Classifier.URL))
	}
	if c.Classifier.Timeout <= 0 {
		errs = append(errs, errors.New("CLASSIFIER_TIMEOUT must be > 0"))
	}
	if !isAbsURL(c.Playout.URL) {
		errs = append(errs, fmt.Errorf("PLAYOUT_URL must be an absolute URL, got %q", c.Playout.URL))
	}
	if c.Playout.AutomationURL != "" && !isAbsURL(c.Playout.AutomationURL) {
		errs = append(errs, fmt.Errorf("AUTOMATION_URL must be an absolute URL, got %q", c.Playout.AutomationURL))
	}
	if c.Playout.Timeout <= 0 {
		errs = append(errs, errors.New("PLAYOUT_TIMEOUT must be > 0"))
	}

	if c.Recordings.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("DOWNLOAD_TIMEOUT must be > 0"))
	}
	if c.Recordings.LinkTTL <= 0 {
		errs = append(errs, errors.New("RECORDING_LINK_TTL must be > 0"))
	}
	switch c.Recordings.Format {
	case "mp3", "wav":
	default:
		errs = append(errs, fmt.Errorf("RECORDING_FORMAT must be mp3 or wav, got %q", c.Recordings.Format))
	}

	if c.Workers.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be > 0, got %d", c.Workers.Concurrency))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// DriverName returns the database/sql driver registered for c.DB.Driver.
func (c Config) DriverName() string {
	if c.DB.Driver == "sqlite" {
		return "sqlite"
	}
	return "pgx"
}

// DSN returns the data source name for DriverName.
func (c Config) DSN() string {
	if c.DB.Driver == "sqlite" {
		return "file:" + c.DB.SQLitePath + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// source resolves a key from the environment, then from the YAML file.
type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	s := source{file: map[string]string{}}
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return s, fmt.Errorf("parse config file: %w", err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		s.file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return s, nil
}

func (s source) raw(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return s.file[key]
}

func (s source) str(key string) string {
	return strings.TrimSpace(s.raw(key))
}

func intOr(s source, key string, def int, errs []error) (int, []error) {
	v := s.str(key)
	if v == "" {
		return def, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func boolOr(s source, key string, def bool, errs []error) (bool, []error) {
	v := s.str(key)
	if v == "" {
		return def, errs
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, append(errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
	}
	return b, errs
}

func durationOr(s source, key string, def time.Duration, errs []error) (time.Duration, []error) {
	v := s.str(key)
	if v == "" {
		return def, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func isAbsURL(v string) bool {
	u, err := url.Parse(v)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
