package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vitrine/config"
	"vitrine/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/rs/zerolog/log"
)

// activeGrantIndex garante no banco a regra "no máximo 1 grant ativo por (email, plan_code)".
// Índice parcial: funciona tanto no sqlite quanto no postgres.
const activeGrantIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_access_grants_active
	ON access_grants (email, plan_code) WHERE status = 'active'`

// Connect abre conexão com o DB (sqlite3 por padrão).
func Connect(conf config.Configuration) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch strings.ToLower(conf.Database) {
	case "postgres", "postgresql":
		log.Info().Str("host", conf.DbHost).Str("db", conf.DbName).Msg("Utilizando conexão com o postgresql...")
		path := "host=" + conf.DbHost + " port=" + conf.DbPort
		path += " user=" + conf.DbUser + " dbname=" + conf.DbName
		path += " password=" + conf.DbPass + " sslmode=" + conf.DbSSLMode
		db, err = gorm.Open("postgres", path)
	default:
		log.Info().Str("path", conf.SqlitePath).Msg("Utilizando conexão com o sqlite3...")
		db, err = OpenSQLite(conf.SqlitePath)
		return db, err
	}

	if err != nil {
		log.Error().Err(err).Msg("Got error when connect database")
		return nil, err
	}
	configure(db)
	return db, nil
}

// OpenSQLite abre (ou cria) o arquivo sqlite em path.
// Uma única conexão: as transações de escrita ficam serializadas e o busy_timeout cobre o resto.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := gorm.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.DB().SetMaxOpenConns(1)
	configure(db)
	return db, nil
}

func configure(db *gorm.DB) {
	db.SetLogger(gormLogger{})
	db.LogMode(log.Debug().Enabled())
}

// Migrate cria/atualiza as tabelas e os índices que o engine depende.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Product{},
		&models.MediaItem{},
		&models.AccessGrant{},
	).Error; err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	if err := db.Exec(activeGrantIndex).Error; err != nil {
		return fmt.Errorf("create active grant index: %w", err)
	}

	// sqlite não suporta ALTER TABLE ADD CONSTRAINT; lá o cascade é feito pelo CatalogStore.
	if db.Dialect().GetName() == "postgres" {
		if err := db.Model(&models.MediaItem{}).
			AddForeignKey("product_id", "products(id)", "CASCADE", "CASCADE").Error; err != nil &&
			!strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("media_items foreign key: %w", err)
		}
	}

	log.Info().Str("dialect", db.Dialect().GetName()).Msg("database migrated")
	return nil
}

// gormLogger manda o log de SQL do gorm para o zerolog (nível debug).
type gormLogger struct{}

func (gormLogger) Print(v ...interface{}) {
	if len(v) == 0 {
		return
	}
	ev := log.Debug()
	if level, ok := v[0].(string); ok {
		ev = ev.Str("gorm", level)
		if level == "sql" && len(v) >= 4 {
			ev = ev.Interface("duration", v[2]).Interface("query", v[3])
			if len(v) >= 6 {
				ev = ev.Interface("rows", v[5])
			}
			ev.Msg("gorm query")
			return
		}
	}
	ev.Msg(fmt.Sprint(v[1:]...))
}
