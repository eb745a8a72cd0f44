package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"sprynt-api/database"
	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/credits"
	"sprynt-api/internal/domain/projects"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
// A single connection serializes writers the way row locks would.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Logger discards output so tests stay quiet.
func Logger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// CreateAccount inserts an account and funds it through the ledger so the
// balance and the transaction log agree.
func CreateAccount(t testing.TB, db *gorm.DB, plan string, balance int64) accounts.Account {
	t.Helper()

	acct := accounts.Account{
		Email:       fmt.Sprintf("%s@example.test", uuid.NewString()),
		DisplayName: "Test Account",
		Plan:        plan,
	}
	require.NoError(t, db.Create(&acct).Error)

	if balance > 0 {
		ledger := credits.NewLedger(db, Logger(), nil)
		_, err := ledger.Credit(context.Background(), acct.ID, balance, "test_seed", "")
		require.NoError(t, err)
		acct.Credits = balance
	}
	return acct
}

func CreateProject(t testing.TB, db *gorm.DB, ownerID, assetKey string) projects.Project {
	t.Helper()

	p := projects.Project{
		ID:       uuid.NewString(),
		UserID:   ownerID,
		Title:    "Sprite sheet",
		AssetKey: assetKey,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}
