package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ladder/internal/rating"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	HTTP        HTTPConfig        `yaml:"http"`
	Rating      RatingConfig      `yaml:"rating"`
	Submissions SubmissionsConfig `yaml:"submissions"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Log         LogConfig         `yaml:"log"`

	// WebToken is the HMAC key used to sign player tokens, it must be at
	// least 32 characters long.
	WebToken string `yaml:"web_token"`
}

type DatabaseConfig struct {
	DSN        string `yaml:"dsn"`
	Migrations string `yaml:"migrations"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	TokenTTL     time.Duration `yaml:"token_ttl"`

	// Locales is the gettext directory used to translate responses.
	Locales string `yaml:"locales"`
}

// RatingConfig selects the rating system, it is read once at startup and
// must not change while matches are being rated.
type RatingConfig struct {
	System          string  `yaml:"system"`
	Mu              float64 `yaml:"mu"`
	Sigma           float64 `yaml:"sigma"`
	Beta            float64 `yaml:"beta"`
	Tau             float64 `yaml:"tau"`
	DrawProbability float64 `yaml:"draw_probability"`
}

// Algorithm builds the process-wide rating algorithm.
func (c RatingConfig) Algorithm() (rating.Algorithm, error) {
	return rating.New(c.System, rating.TrueSkill{
		Mu:              c.Mu,
		Sigma:           c.Sigma,
		Beta:            c.Beta,
		Tau:             c.Tau,
		DrawProbability: c.DrawProbability,
	})
}

// SubmissionsConfig limits how fast a single player can report matches.
type SubmissionsConfig struct {
	PerMinute float64 `yaml:"per_minute"`
	Burst     int     `yaml:"burst"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func NewFromUserConfigDir() (*Config, error) {
	c := &Config{}
	if err := c.ReloadFromUserConfigDir(); err != nil {
		return nil, err
	}

	return c, nil
}

// ReloadFromUserConfigDir replaces the config by the content of the user
// config file, an absent file yields the defaults.
func (c *Config) ReloadFromUserConfigDir() error {
	path, err := getOrCreateUserConfigPath()
	if err != nil {
		return err
	}

	return c.ReloadFromFile(path)
}

func (c *Config) ReloadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("reading config file: %w", err)
		}
		data = nil
	}

	return c.load(data)
}

func (c *Config) load(data []byte) error {
	var tmp Config
	if len(data) > 0 {
		data = []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(data, &tmp); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := tmp.expandFromEnv(); err != nil {
		return err
	}
	tmp.applyDefaults()

	*c = tmp
	return nil
}

func (c *Config) expandFromEnv() error {
	strs := []struct {
		src string
		dst *string
	}{
		{"LADDER_DB_DSN", &c.Database.DSN},
		{"LADDER_HTTP_ADDR", &c.HTTP.Addr},
		{"LADDER_RATING_SYSTEM", &c.Rating.System},
		{"LADDER_REDIS_ADDR", &c.Redis.Addr},
		{"LADDER_LOG_LEVEL", &c.Log.Level},
		{"LADDER_WEB_TOKEN", &c.WebToken},
	}

	for _, v := range strs {
		if str := os.Getenv(v.src); str != "" {
			*v.dst = str
		}
	}

	if str := os.Getenv("LADDER_KAFKA_BROKERS"); str != "" {
		c.Kafka.Brokers = strings.Split(str, ",")
	}

	bools := []struct {
		src string
		dst *bool
	}{
		{"LADDER_REDIS_ENABLED", &c.Redis.Enabled},
		{"LADDER_KAFKA_ENABLED", &c.Kafka.Enabled},
	}

	for _, v := range bools {
		str := os.Getenv(v.src)
		if str == "" {
			continue
		}

		b, err := strconv.ParseBool(str)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", v.src, err)
		}
		*v.dst = b
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Database.DSN == "" {
		c.Database.DSN = "./ladder.db"
	}
	if c.Database.Migrations == "" {
		c.Database.Migrations = "file://resources/migrations"
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:3001"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 5 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 5 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 10 * time.Second
	}
	if c.HTTP.TokenTTL == 0 {
		c.HTTP.TokenTTL = 30 * 24 * time.Hour
	}
	if c.HTTP.Locales == "" {
		c.HTTP.Locales = "resources/locales"
	}

	if c.Rating.System == "" {
		c.Rating.System = "trueskill"
	}
	ts := rating.DefaultTrueSkill()
	if c.Rating.Mu == 0 {
		c.Rating.Mu = ts.Mu
	}
	if c.Rating.Sigma == 0 {
		c.Rating.Sigma = c.Rating.Mu / 3
	}
	if c.Rating.Beta == 0 {
		c.Rating.Beta = c.Rating.Sigma / 2
	}
	if c.Rating.Tau == 0 {
		c.Rating.Tau = c.Rating.Sigma / 100
	}
	if c.Rating.DrawProbability == 0 {
		c.Rating.DrawProbability = ts.DrawProbability
	}

	if c.Submissions.PerMinute == 0 {
		c.Submissions.PerMinute = 10
	}
	if c.Submissions.Burst == 0 {
		c.Submissions.Burst = 20
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Key == "" {
		c.Redis.Key = "ladder:standings"
	}

	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "accounts"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "ladder-ratings"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

func getOrCreateUserConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(configDir, "ladder")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	return filepath.Join(dir, "config.yml"), nil
}

func (c *Config) Write() error {
	path, err := getOrCreateUserConfigPath()
	if err != nil {
		return err
	}

	return c.WriteFile(path)
}

func (c *Config) WriteFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		if err2 := f.Close(); err2 != nil {
			return fmt.Errorf("unable to close file (%s) after error: %w", err2, err)
		}

		return err
	}

	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
