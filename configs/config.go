package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Cache struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cache"`

	// Placement tunes the order-placement transaction engine.
	Placement struct {
		// Mode is "serializable" (row locks inside a serializable tx) or
		// "optimistic" (version-fenced conditional updates).
		Mode         string        `koanf:"mode"`
		MaxAttempts  int           `koanf:"max_attempts"`
		RetryBackoff time.Duration `koanf:"retry_backoff"`
	} `koanf:"placement"`

	Outbox struct {
		Interval  time.Duration `koanf:"interval"`
		BatchSize int           `koanf:"batch_size"`
	} `koanf:"outbox"`

	Rabbit struct {
		URL string `koanf:"url"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers    []string `koanf:"brokers"`
		TopicStock string   `koanf:"topic_stock"`
		GroupID    string   `koanf:"group_id"`
	} `koanf:"kafka"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix STOCKORDER_, nested with __)
	// e.g. STOCKORDER_MYSQL__DSN, STOCKORDER_REDIS__PASSWORD
	if err := k.Load(env.Provider("STOCKORDER_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "STOCKORDER_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Placement.Mode == "" {
		c.Placement.Mode = "serializable"
	}
	if c.Placement.MaxAttempts == 0 {
		c.Placement.MaxAttempts = 3
	}
	if c.Placement.RetryBackoff == 0 {
		c.Placement.RetryBackoff = 25 * time.Millisecond
	}
	if c.Outbox.Interval == 0 {
		c.Outbox.Interval = time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 100
	}
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn required")
	}
	switch c.Placement.Mode {
	case "serializable", "optimistic":
	default:
		return fmt.Errorf("placement.mode must be serializable or optimistic, got %q", c.Placement.Mode)
	}
	if c.Placement.MaxAttempts < 1 {
		return fmt.Errorf("placement.max_attempts must be >= 1")
	}
	return nil
}
