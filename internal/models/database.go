package models

import (
	"fmt"

	"github.com/huangang/taskboard/internal/config"
	"github.com/huangang/taskboard/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Open connects to the configured database without touching the package-level handle.
func Open(cfg *config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger:         logger.NewGormLogger(debug),
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func InitDB(cfg *config.DatabaseConfig, debug bool) error {
	db, err := Open(cfg, debug)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&Board{}, "Members", &BoardMember{}); err != nil {
		return fmt.Errorf("setup board_members: %w", err)
	}
	return db.AutoMigrate(
		&User{},
		&Board{},
		&BoardMember{},
		&Task{},
		&Comment{},
		&Invitation{},
		&RefreshToken{},
		&AuditLog{},
		&SchedulerLock{},
	)
}

func AutoMigrate() error {
	return Migrate(DB)
}

func GetDB() *gorm.DB {
	return DB
}
