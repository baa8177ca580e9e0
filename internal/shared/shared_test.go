package shared

import (
	"bytes"
	"testing"
)

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf)

	logger.Info("hello", "key", "value")
	if !bytes.Contains(buf.Bytes(), []byte("hello")) {
		t.Errorf("log output missing message: %q", buf.String())
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("ids should be unique")
	}
	if len(a) != 36 {
		t.Errorf("expected a uuid string, got %q", a)
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState failed: %v", err)
	}
	b, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState failed: %v", err)
	}
	if a == b {
		t.Error("state tokens should be unique")
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex characters, got %d", len(a))
	}
}

func TestRound(t *testing.T) {
	cases := []struct {
		value  float64
		places int
		want   float64
	}{
		{0.12345, 2, 0.12},
		{0.125, 2, 0.13},
		{117.84, 1, 117.8},
		{0, 2, 0},
	}

	for _, tc := range cases {
		if got := Round(tc.value, tc.places); got != tc.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tc.value, tc.places, got, tc.want)
		}
	}
}

func TestMigrations(t *testing.T) {
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	// Running twice must be a no-op.
	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations should be idempotent: %v", err)
	}

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'sessions'").Scan(&name)
	if err != nil {
		t.Fatalf("sessions table missing after migrations: %v", err)
	}

	if err := RollbackMigration(db); err != nil {
		t.Fatalf("RollbackMigration failed: %v", err)
	}
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'sessions'").Scan(&name)
	if err == nil {
		t.Error("sessions table should be gone after rollback")
	}
}
