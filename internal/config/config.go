package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	ItemAPI   ItemAPIConfig   `mapstructure:"item_api"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Store     StoreConfig     `mapstructure:"store"`
	Bid       BidConfig       `mapstructure:"bid"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Leader    LeaderConfig    `mapstructure:"leader"`
	Instance  InstanceConfig  `mapstructure:"instance"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type ItemAPIConfig struct {
	Port int `mapstructure:"port"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StoreConfig selects the price store backend: memory, mysql or redis.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type BidConfig struct {
	Increment     int64         `mapstructure:"increment"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DedupeWindow  time.Duration `mapstructure:"dedupe_window"`
	DedupeBackend string        `mapstructure:"dedupe_backend"`
}

type BroadcastConfig struct {
	QueueSize      int           `mapstructure:"queue_size"`
	OverflowPolicy string        `mapstructure:"overflow_policy"`
	GapWait        time.Duration `mapstructure:"gap_wait"`
	RelayEnabled   bool          `mapstructure:"relay_enabled"`
	Channel        string        `mapstructure:"channel"`
}

type MonitorConfig struct {
	ProbeInterval    time.Duration `mapstructure:"probe_interval"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	ProbeItemID      string        `mapstructure:"probe_item_id"`
}

type GatewayConfig struct {
	RejectWhenDegraded bool `mapstructure:"reject_when_degraded"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
	Key string        `mapstructure:"key"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var envBindings = map[string]string{
	"server.port":                  "SERVER_PORT",
	"server.host":                  "SERVER_HOST",
	"item_api.port":                "ITEM_API_PORT",
	"redis.address":                "REDIS_ADDRESS",
	"redis.password":               "REDIS_PASSWORD",
	"redis.db":                     "REDIS_DB",
	"mysql.dsn":                    "MYSQL_DSN",
	"mysql.max_open_conns":         "MYSQL_MAX_OPEN_CONNS",
	"mysql.max_idle_conns":         "MYSQL_MAX_IDLE_CONNS",
	"mysql.conn_max_lifetime":      "MYSQL_CONN_MAX_LIFETIME",
	"store.driver":                 "STORE_DRIVER",
	"bid.increment":                "BID_INCREMENT",
	"bid.timeout":                  "BID_TIMEOUT",
	"bid.dedupe_window":            "BID_DEDUPE_WINDOW",
	"bid.dedupe_backend":           "BID_DEDUPE_BACKEND",
	"broadcast.queue_size":         "BROADCAST_QUEUE_SIZE",
	"broadcast.overflow_policy":    "BROADCAST_OVERFLOW_POLICY",
	"broadcast.gap_wait":           "BROADCAST_GAP_WAIT",
	"broadcast.relay_enabled":      "BROADCAST_RELAY_ENABLED",
	"broadcast.channel":            "BROADCAST_CHANNEL",
	"monitor.probe_interval":       "MONITOR_PROBE_INTERVAL",
	"monitor.failure_threshold":    "MONITOR_FAILURE_THRESHOLD",
	"monitor.sweep_interval":       "MONITOR_SWEEP_INTERVAL",
	"monitor.probe_item_id":        "MONITOR_PROBE_ITEM_ID",
	"gateway.reject_when_degraded": "GATEWAY_REJECT_WHEN_DEGRADED",
	"leader.ttl":                   "LEADER_TTL",
	"leader.key":                   "LEADER_KEY",
	"instance.id":                  "INSTANCE_ID",
	"log.level":                    "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("item_api.port", 8080)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "bidding_user:bidding_pass@tcp(localhost:3306)/bidding_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("store.driver", "mysql")
	v.SetDefault("bid.increment", 10)
	v.SetDefault("bid.timeout", 3*time.Second)
	v.SetDefault("bid.dedupe_window", 2*time.Minute)
	v.SetDefault("bid.dedupe_backend", "memory")
	v.SetDefault("broadcast.queue_size", 256)
	v.SetDefault("broadcast.overflow_policy", "drop_oldest")
	v.SetDefault("broadcast.gap_wait", 500*time.Millisecond)
	v.SetDefault("broadcast.relay_enabled", false)
	v.SetDefault("broadcast.channel", "bid_events")
	v.SetDefault("monitor.probe_interval", 10*time.Second)
	v.SetDefault("monitor.failure_threshold", 3)
	v.SetDefault("monitor.sweep_interval", 30*time.Second)
	v.SetDefault("monitor.probe_item_id", "")
	v.SetDefault("gateway.reject_when_degraded", true)
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("leader.key", "bidding_audit_leader")
	v.SetDefault("instance.id", "")
	v.SetDefault("log.level", "info")
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/bidding-system/")

	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Instance.ID == "" {
		config.Instance.ID = "bidding-" + uuid.NewString()[:8]
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the bidding core cannot run with.
func (c *Config) Validate() error {
	if c.Bid.Increment <= 0 {
		return fmt.Errorf("bid.increment must be positive, got %d", c.Bid.Increment)
	}
	if c.Bid.Timeout <= 0 {
		return fmt.Errorf("bid.timeout must be positive, got %s", c.Bid.Timeout)
	}
	if c.Leader.TTL <= 0 {
		return fmt.Errorf("leader.ttl must be positive, got %s", c.Leader.TTL)
	}
	if c.Broadcast.QueueSize <= 0 {
		return fmt.Errorf("broadcast.queue_size must be positive, got %d", c.Broadcast.QueueSize)
	}

	switch strings.ToLower(c.Store.Driver) {
	case "memory", "mysql", "redis":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	switch strings.ToLower(c.Bid.DedupeBackend) {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown bid.dedupe_backend %q", c.Bid.DedupeBackend)
	}

	switch strings.ToLower(c.Broadcast.OverflowPolicy) {
	case "drop_oldest", "disconnect":
	default:
		return fmt.Errorf("unknown broadcast.overflow_policy %q", c.Broadcast.OverflowPolicy)
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Store: %s, Redis: %s, Increment: %d, Relay: %t, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Store.Driver,
		c.Redis.Address,
		c.Bid.Increment,
		c.Broadcast.RelayEnabled,
		c.Instance.ID,
	)
}
