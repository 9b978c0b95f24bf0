package cli

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("archive.database.path", "database path is required")
	if !strings.Contains(err.Error(), "archive.database.path") {
		t.Errorf("field missing from message: %s", err.Error())
	}
}

func TestConfigError_NoField(t *testing.T) {
	err := NewConfigError("", "failed to load config")
	if strings.Contains(err.Error(), " in ") {
		t.Errorf("message should not name a field: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "failed to load config") {
		t.Errorf("message lost: %s", err.Error())
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	cause := errors.New("ledger verification failed")
	err := NewCommandError("verify", cause)

	if !strings.Contains(err.Error(), "verify") {
		t.Errorf("command missing from message: %s", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("CommandError should unwrap to its cause")
	}
}
