package config

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Bot      BotConfig
	Panel    PanelConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type BotConfig struct {
	Token      string
	WebhookURL string
	UpdateMode string // "polling", "webhook", "auto"
	OwnerIDs   []int64
}

type PanelConfig struct {
	RequestTimeout time.Duration
	BatchTimeout   time.Duration
	StatsTTL       time.Duration
	StatsPageSize  int
	PurgePageSize  int
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("BOT_UPDATE_MODE", "auto")
	viper.SetDefault("PANEL_TIMEOUT", "10s")
	viper.SetDefault("PANEL_BATCH_TIMEOUT", "2m")
	viper.SetDefault("STATS_CACHE_TTL", "5m")
	viper.SetDefault("STATS_PAGE_SIZE", 200)
	viper.SetDefault("PURGE_PAGE_SIZE", 100)

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Bot: BotConfig{
			Token:      viper.GetString("BOT_TOKEN"),
			WebhookURL: viper.GetString("BOT_WEBHOOK_URL"),
			UpdateMode: viper.GetString("BOT_UPDATE_MODE"),
			OwnerIDs:   parseIDList(viper.GetString("BOT_OWNER_IDS")),
		},
		Panel: PanelConfig{
			RequestTimeout: parseDuration(viper.GetString("PANEL_TIMEOUT"), 10*time.Second),
			BatchTimeout:   parseDuration(viper.GetString("PANEL_BATCH_TIMEOUT"), 2*time.Minute),
			StatsTTL:       parseDuration(viper.GetString("STATS_CACHE_TTL"), 5*time.Minute),
			StatsPageSize:  viper.GetInt("STATS_PAGE_SIZE"),
			PurgePageSize:  viper.GetInt("PURGE_PAGE_SIZE"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Bot.Token == "" {
		log.Println("WARNING: BOT_TOKEN is not set")
	}
	if len(cfg.Bot.OwnerIDs) == 0 {
		log.Println("WARNING: BOT_OWNER_IDS is not set; no chat will have owner access")
	}

	return cfg, nil
}

// IsOwner reports whether the given chat ID belongs to a configured owner.
func (b *BotConfig) IsOwner(chatID int64) bool {
	for _, id := range b.OwnerIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}

func parseIDList(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("WARNING: ignoring invalid owner ID %q", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
