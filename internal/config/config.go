package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Exam struct {
		TTL  string `yaml:"ttl"`
		Tick string `yaml:"tick"`
	} `yaml:"exam"`
	Results struct {
		TTL string `yaml:"ttl"`
	} `yaml:"results"`
	Events struct {
		Enabled bool   `yaml:"enabled"`
		Brokers string `yaml:"brokers"`
		Topic   string `yaml:"topic"`
	} `yaml:"events"`
}

// Load reads YAML config from path, then applies environment overrides. A
// .env file in the working directory is loaded first if present. A missing
// config file is not an error; defaults and the environment still apply.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	override(&c.Server.Port, "PORT")
	override(&c.Log.Level, "LOG_LEVEL")
	override(&c.Log.Format, "LOG_FORMAT")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Postgres.URL, "POSTGRES_URL")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Events.Brokers = brokers
		c.Events.Enabled = true
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "exam.results"
	}
}

// BrokerList splits the comma separated broker setting.
func (c Config) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.Events.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
