package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type DB struct {
	URL             string        `env:"DATABASE_URL,required"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"16"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"8"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"15m"`
}

type Server struct {
	Port string `env:"PORT" envDefault:"8080"`
}

type Throttle struct {
	Enabled       bool `env:"THROTTLE_ENABLED" envDefault:"true"`
	WindowSeconds int  `env:"THROTTLE_WINDOW_SECONDS" envDefault:"60"`
	MaxAttempts   int  `env:"THROTTLE_MAX_ATTEMPTS" envDefault:"5"`
}

type Policy struct {
	File string `env:"POLICY_FILE" envDefault:"policy.yaml"`
}

type Kafka struct {
	BootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS"`
	AuditTopic       string `env:"KAFKA_AUDIT_TOPIC" envDefault:"remediation.audit"`
}

type Identity struct {
	AllowAnonymous bool `env:"IDENTITY_ALLOW_ANONYMOUS" envDefault:"false"`
}

type Executor struct {
	// Mode selects the executor implementation: "dryrun" or "webhook".
	Mode string `env:"EXECUTOR_MODE" envDefault:"dryrun"`
}

type Config struct {
	DB       DB
	Server   Server
	Throttle Throttle
	Policy   Policy
	Kafka    Kafka
	Identity Identity
	Executor Executor
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
