package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/theproject93/planejar-pro-sub001/app/models"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/env"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/logging"
)

var DB *gorm.DB

const maxRetries = 5
const retryDelay = 5 * time.Second

func SetupDatabase() {
	var err error
	dsn := env.GetEnv("DATABASE_URL", "")
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			env.GetEnv("DB_HOST", "127.0.0.1"),
			env.GetEnv("DB_USER", ""),
			env.GetEnv("DB_PASSWORD", ""),
			env.GetEnv("DB_NAME", ""),
			env.GetEnv("DB_PORT", "5432"),
		)
	}

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logging.GormLogger(),
		})
		if err == nil {
			DB.AutoMigrate(
				&models.Subscription{},
				&models.Payment{},
				&models.WebhookEvent{},
			)
			return
		}

		logging.Error(err, fmt.Sprintf("Failed to connect to database (try %d/%d)", i+1, maxRetries), nil)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

func GetDB() *gorm.DB {
	return DB
}

// SetDB swaps the global DB handle; used by tests to inject a mocked connection.
func SetDB(db *gorm.DB) {
	DB = db
}
