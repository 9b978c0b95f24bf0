package config

import "testing"

func TestSetConfigAndGetConfig(t *testing.T) {
	original := GetConfig()
	defer SetConfig(original)

	cfg := validConfig()
	cfg.Server.ListenAddress = "127.0.0.1:7001"
	SetConfig(cfg)

	got := GetConfig()
	if got == nil || got.Server.ListenAddress != "127.0.0.1:7001" {
		t.Errorf("GetConfig returned %+v", got)
	}
}
