package cli

import "testing"

func TestSetupSignalHandler(t *testing.T) {
	ctx := SetupSignalHandler()
	select {
	case <-ctx.Done():
		t.Error("context should not be cancelled without a signal")
	default:
	}
}
