package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	applogger "CourtArb/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
		CORS            bool          `yaml:"cors"`
	} `yaml:"server"`
	Log     applogger.Config `yaml:"log"`
	Metrics struct {
		Path string `yaml:"path" default:"/metrics" validate:"startswith=/"`
	} `yaml:"metrics"`
	Aggregator struct {
		Interval       time.Duration `yaml:"interval" default:"5s" validate:"gt=0"`
		CallTimeout    time.Duration `yaml:"call_timeout" default:"8s" validate:"gt=0"`
		HookTimeout    time.Duration `yaml:"hook_timeout" default:"5s" validate:"gt=0"`
		MaxConcurrency int           `yaml:"max_concurrency" default:"16" validate:"gt=0"`
	} `yaml:"aggregator"`
	Reconciler struct {
		SnapshotTTL time.Duration `yaml:"snapshot_ttl" default:"45s" validate:"gt=0"`
	} `yaml:"reconciler"`
	Store struct {
		FinalRetention time.Duration `yaml:"final_retention" default:"1h" validate:"gt=0"`
		StaleAfter     time.Duration `yaml:"stale_after" default:"30m" validate:"gt=0"`
		MaxUnseen      time.Duration `yaml:"max_unseen" default:"6h" validate:"gt=0"`
	} `yaml:"store"`
	Cache struct {
		MemoryMaxSize  int           `yaml:"memory_max_size" default:"10000" validate:"gte=0"`
		SweepInterval  time.Duration `yaml:"sweep_interval" default:"60s" validate:"gt=0"`
		ProbabilityTTL time.Duration `yaml:"probability_ttl" default:"10s" validate:"gt=0"`
		Redis          struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"courtarb"`
			PoolSize int    `yaml:"pool_size" default:"10"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Signals Signals `yaml:"signals"`
	Sources   struct {
		ESPN struct {
			BaseURL string  `yaml:"base_url" default:"https://site.api.espn.com/apis/site/v2/sports/basketball/nba" validate:"url"`
			RPS     float64 `yaml:"rps" default:"5" validate:"gte=0"`
			Burst   int     `yaml:"burst" default:"5" validate:"gte=0"`
		} `yaml:"espn"`
		Polymarket struct {
			BaseURL  string  `yaml:"base_url" default:"https://gamma-api.polymarket.com" validate:"url"`
			RPS      float64 `yaml:"rps" default:"2" validate:"gte=0"`
			Burst    int     `yaml:"burst" default:"2" validate:"gte=0"`
			SportTag string  `yaml:"sport_tag" default:"nba" validate:"required"`
			PageSize int     `yaml:"page_size" default:"100" validate:"gt=0"`
			MaxPages int     `yaml:"max_pages" default:"5" validate:"gt=0"`
		} `yaml:"polymarket"`
		UserAgent string `yaml:"user_agent" default:"courtarb/1.0"`
	} `yaml:"sources"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"courtarb.events"`
		LogTopic     string   `yaml:"log_topic" default:"courtarb.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"courtarb"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	WebSocket struct {
		Path         string        `yaml:"path" default:"/ws" validate:"startswith=/"`
		SendBuffer   int           `yaml:"send_buffer" default:"16" validate:"gt=0"`
		PingInterval time.Duration `yaml:"ping_interval" default:"30s" validate:"gt=0"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s" validate:"gt=0"`
	} `yaml:"websocket"`
}

// Signals mirrors the engine thresholds.
type Signals struct {
	BuyMinEdge        float64 `yaml:"buy_min_edge" default:"0.05" validate:"gte=0,lte=1"`
	BuyMinConfidence  float64 `yaml:"buy_min_confidence" default:"0.5" validate:"gte=0,lte=1"`
	SellMinEdge       float64 `yaml:"sell_min_edge" default:"0.07" validate:"gte=0,lte=1"`
	SellMinLead       int     `yaml:"sell_min_lead" default:"5" validate:"gte=0"`
	SellMinPrice      float64 `yaml:"sell_min_price" default:"0.70" validate:"gte=0,lte=1"`
	SellScale         float64 `yaml:"sell_scale" default:"0.9" validate:"gt=0"`
	SellMinConfidence float64 `yaml:"sell_min_confidence" default:"0.6" validate:"gte=0,lte=1"`
	HighLiquidity     float64 `yaml:"high_liquidity" default:"10000" validate:"gte=0"`
	MidLiquidity      float64 `yaml:"mid_liquidity" default:"5000" validate:"gte=0,ltefield=HighLiquidity"`
	CloseGameMargin   int     `yaml:"close_game_margin" default:"5" validate:"gte=0"`
	BlowoutMargin     int     `yaml:"blowout_margin" default:"15" validate:"gte=0"`
	TimeBonusSeconds  int     `yaml:"time_bonus_seconds" default:"1800" validate:"gte=0"`
	LateGameSeconds   int     `yaml:"late_game_seconds" default:"600" validate:"gte=0"`
	LateGameScale     float64 `yaml:"late_game_scale" default:"0.8" validate:"gt=0,lte=1"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file. Missing keys take their
// struct-tag defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes raw YAML, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Enabled = true
		c.Cache.Redis.Host = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Enabled = true
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("ESPN_BASE_URL"); v != "" {
		c.Sources.ESPN.BaseURL = v
	}
	if v := getenv("POLYMARKET_BASE_URL"); v != "" {
		c.Sources.Polymarket.BaseURL = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Signals.BlowoutMargin < c.Signals.CloseGameMargin {
		return fmt.Errorf("signals.blowout_margin (%d) must not be below signals.close_game_margin (%d)",
			c.Signals.BlowoutMargin, c.Signals.CloseGameMargin)
	}
	return nil
}
