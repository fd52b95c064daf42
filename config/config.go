package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Sim      SimConfig      `mapstructure:"sim"`
	Security SecurityConfig `mapstructure:"security"`
	Resource ResourceConfig `mapstructure:"resource"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // memory | sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SimConfig struct {
	TickMs           int     `mapstructure:"tick_ms"`
	MaxEntities      int     `mapstructure:"max_entities"`
	GraceMs          int     `mapstructure:"grace_ms"`
	BoundsX          float64 `mapstructure:"bounds_x"`
	BoundsY          float64 `mapstructure:"bounds_y"`
	MaxMoveStep      float64 `mapstructure:"max_move_step"`
	ImmunityMs       int     `mapstructure:"immunity_ms"`
	MaxClaimedDamage float64 `mapstructure:"max_claimed_damage"`
	NavCellSize      float64 `mapstructure:"nav_cell_size"`

	// Per-operation sliding-window budgets.
	FirePerSecond  int `mapstructure:"fire_per_second"`
	HitsPerSecond  int `mapstructure:"hits_per_second"`
	MovesPerSecond int `mapstructure:"moves_per_second"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket/SSE origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// AdminIPWhitelist restricts /api/admin to these client IPs.
	// Empty means any IP (the admin key is still required).
	AdminIPWhitelist []string `mapstructure:"admin_ip_whitelist"`
}

type ResourceConfig struct {
	Dir string `mapstructure:"dir"` // weapons.yaml, archetypes.yaml
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/game.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("sim.tick_ms", 100)
	v.SetDefault("sim.max_entities", 64)
	v.SetDefault("sim.grace_ms", 1500)
	v.SetDefault("sim.bounds_x", 256)
	v.SetDefault("sim.bounds_y", 256)
	v.SetDefault("sim.max_move_step", 10)
	v.SetDefault("sim.immunity_ms", 100)
	v.SetDefault("sim.max_claimed_damage", 100)
	v.SetDefault("sim.nav_cell_size", 1)
	v.SetDefault("sim.fire_per_second", 20)
	v.SetDefault("sim.hits_per_second", 20)
	v.SetDefault("sim.moves_per_second", 30)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("resource.dir", "./data/resources")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
