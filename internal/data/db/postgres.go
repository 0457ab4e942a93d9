package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
	"github.com/yungbote/conceptlab-backend/internal/platform/envutil"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewPostgresService connects using POSTGRES_DSN when set, otherwise a DSN
// assembled from the individual POSTGRES_* variables.
func NewPostgresService(logg *logger.Logger) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	dsn := envutil.Str("POSTGRES_DSN", "")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			envutil.Str("POSTGRES_USER", "postgres"),
			envutil.Str("POSTGRES_PASSWORD", ""),
			envutil.Str("POSTGRES_HOST", "localhost"),
			envutil.Str("POSTGRES_PORT", "5432"),
			envutil.Str("POSTGRES_NAME", "conceptlab"),
			envutil.Str("POSTGRES_SSLMODE", "disable"),
		)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	pool, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool handle: %w", err)
	}
	pool.SetMaxOpenConns(envutil.Int("POSTGRES_MAX_OPEN_CONNS", 16))
	pool.SetMaxIdleConns(envutil.Int("POSTGRES_MAX_IDLE_CONNS", 4))
	pool.SetConnMaxLifetime(30 * time.Minute)

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

// Close releases the underlying connection pool.
func (s *PostgresService) Close() error {
	pool, err := s.db.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}
