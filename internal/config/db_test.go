package config

import (
	"testing"
)

func clearDBEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME", "DATABASE_DSN"} {
		t.Setenv(key, "")
	}
}

func TestGetDatabaseDSN_FromEnvVars(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("DB_USER", "testuser")
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("DB_HOST", "testhost")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_NAME", "testdb")

	dsn := GetDatabaseDSN()
	expected := "testuser:testpass@tcp(testhost:3307)/testdb?parseTime=true&loc=Local"

	if dsn != expected {
		t.Errorf("GetDatabaseDSN() = %v, want %v", dsn, expected)
	}
}

func TestGetDatabaseDSN_FromDatabaseDSNEnv(t *testing.T) {
	clearDBEnv(t)
	testDSN := "custom:dsn@tcp(custom:3306)/customdb?parseTime=true"
	t.Setenv("DATABASE_DSN", testDSN)

	if dsn := GetDatabaseDSN(); dsn != testDSN {
		t.Errorf("GetDatabaseDSN() = %v, want %v", dsn, testDSN)
	}
}

func TestGetDatabaseDSN_Default(t *testing.T) {
	clearDBEnv(t)

	dsn := GetDatabaseDSN()
	expected := "sensorcast:sensorcast@tcp(localhost:3306)/capstone?parseTime=true&loc=Local"

	if dsn != expected {
		t.Errorf("GetDatabaseDSN() = %v, want %v", dsn, expected)
	}
}

func TestGetDatabaseDSN_PartialEnvVars(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("DB_USER", "testuser")
	t.Setenv("DB_PASSWORD", "testpass")

	dsn := GetDatabaseDSN()
	expected := "sensorcast:sensorcast@tcp(localhost:3306)/capstone?parseTime=true&loc=Local"

	if dsn != expected {
		t.Errorf("GetDatabaseDSN() = %v, want %v", dsn, expected)
	}
}
