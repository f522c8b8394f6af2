package db

import (
	"testing"

	"github.com/casabot/innkeeper/internal/config"
	"github.com/casabot/innkeeper/internal/models"
)

// --- Connect tests ---

func TestConnect_SQLiteInMemory(t *testing.T) {
	gdb, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	if err := gdb.Create(&models.Thread{ID: "t-1"}).Error; err != nil {
		t.Fatalf("create thread: %v", err)
	}
	var count int64
	gdb.Model(&models.Thread{}).Count(&count)
	if count != 1 {
		t.Errorf("thread count = %d, want 1", count)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "10.0.0.5", Port: 3307, Name: "inn"})
	want := "root@tcp(10.0.0.5:3307)/inn?parseTime=true"
	if dsn != want {
		t.Errorf("dsn = %q, want %q", dsn, want)
	}
}

// --- Migration tests ---

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 4 {
		t.Errorf("model count = %d, want 4", got)
	}
}
