package testutils

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/theproject93/planejar-pro-sub001/internal/pkg/database"
)

// SetupTestDB replaces the global DB handle with a sqlmock-backed GORM
// connection and returns the mock for expectation setup. The previous handle
// is restored when the test finishes. Regexp query matching keeps the
// expectations readable: match on the statement prefix, not the full SQL.
func SetupTestDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open gorm over sqlmock: %v", err)
	}

	previous := database.GetDB()
	database.SetDB(gormDB)
	t.Cleanup(func() {
		database.SetDB(previous)
		sqlDB.Close()
	})
	return mock
}

// MakeToken signs a short-lived HS256 bearer token compatible with the auth
// middleware.
func MakeToken(t *testing.T, secret, userID, email string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}
