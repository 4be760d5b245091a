package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Configuration struct {
	ApiPort   string `json:"api_port"`
	LogPath   string `json:"log_path"`
	LogLevel  string `json:"log_level"`  // debug, info, warn, error
	LogFormat string `json:"log_format"` // console ou json

	Database   string `json:"database"` // "sqlite3" ou "postgres"
	SqlitePath string `json:"sqlite_path"`
	DbHost     string `json:"db_host"`
	DbPort     string `json:"db_port"`
	DbUser     string `json:"db_user"`
	DbName     string `json:"db_name"`
	DbPass     string `json:"db_pass"`
	DbSSLMode  string `json:"db_sslmode"`

	// StoreTimeoutSeconds limita cada chamada ao banco.
	StoreTimeoutSeconds int `json:"store_timeout_seconds"`
	// StatsIntervalSeconds controla o worker de métricas de acessos; 0 desliga.
	StatsIntervalSeconds int `json:"stats_interval_seconds"`

	Security struct {
		// WebhookSecret habilita a validação de X-Webhook-Signature quando preenchido.
		WebhookSecret string `json:"webhook_secret"`
	} `json:"security"`

	CORS struct {
		AllowedOrigins []string `json:"allowed_origins"`
	} `json:"cors"`
}

func (c Configuration) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

func (c Configuration) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalSeconds) * time.Second
}

// Load lê o arquivo JSON (se informado), aplica o .env / variáveis VITRINE_* e completa os defaults.
func Load(path string) (Configuration, error) {
	var c Configuration

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := json.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env é opcional; variáveis já exportadas no processo têm prioridade.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return c, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&c)
	applyDefaults(&c)

	if c.StoreTimeoutSeconds < 0 {
		return c, fmt.Errorf("store_timeout_seconds must be >= 0")
	}
	return c, nil
}

func applyEnv(c *Configuration) {
	setString(&c.ApiPort, "VITRINE_API_PORT")
	setString(&c.LogPath, "VITRINE_LOG_PATH")
	setString(&c.LogLevel, "VITRINE_LOG_LEVEL")
	setString(&c.LogFormat, "VITRINE_LOG_FORMAT")
	setString(&c.Database, "VITRINE_DATABASE")
	setString(&c.SqlitePath, "VITRINE_SQLITE_PATH")
	setString(&c.DbHost, "VITRINE_DB_HOST")
	setString(&c.DbPort, "VITRINE_DB_PORT")
	setString(&c.DbUser, "VITRINE_DB_USER")
	setString(&c.DbName, "VITRINE_DB_NAME")
	setString(&c.DbPass, "VITRINE_DB_PASS")
	setString(&c.DbSSLMode, "VITRINE_DB_SSLMODE")
	setString(&c.Security.WebhookSecret, "VITRINE_WEBHOOK_SECRET")
	setInt(&c.StoreTimeoutSeconds, "VITRINE_STORE_TIMEOUT_SECONDS")
	setInt(&c.StatsIntervalSeconds, "VITRINE_STATS_INTERVAL_SECONDS")

	if v := strings.TrimSpace(os.Getenv("VITRINE_CORS_ALLOWED_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORS.AllowedOrigins = origins
	}
}

// defaults (pra evitar nil/zero chato)
func applyDefaults(c *Configuration) {
	if c.ApiPort == "" {
		c.ApiPort = "8080"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/server.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Database == "" {
		c.Database = "sqlite3"
	}
	if c.SqlitePath == "" {
		c.SqlitePath = "db/database.db"
	}
	if c.DbSSLMode == "" {
		c.DbSSLMode = "disable"
	}
	if c.StoreTimeoutSeconds == 0 {
		c.StoreTimeoutSeconds = 5
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
