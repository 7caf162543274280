package tester

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emrgen/linkstore/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testPath = "../../.test/"
)

var (
	db *gorm.DB
)

// Setup opens the shared sqlite database used by a package TestMain.
func Setup() {
	RemoveDBFile()

	_ = os.Setenv("ENV", "test")

	err := os.MkdirAll(testPath+"/db", os.ModePerm)
	if err != nil {
		panic(err)
	}

	db, err = open(testPath + "db/linkstore.db")
	if err != nil {
		panic(err)
	}
}

func TestDB() *gorm.DB {
	return db
}

func RemoveDBFile() {
	err := os.RemoveAll(testPath)
	if err != nil {
		panic(err)
	}
}

// NewTestDB opens a migrated sqlite database private to one test.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	tdb, err := open(filepath.Join(t.TempDir(), "linkstore.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := tdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return tdb
}

func open(path string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := model.Migrate(gdb); err != nil {
		return nil, err
	}

	return gdb, nil
}
