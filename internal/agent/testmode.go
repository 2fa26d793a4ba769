package agent

import (
	"github.com/nextlevelbuilder/leadclaw/internal/channels"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// ShouldRespond is the test-mode filter: with test mode on, only the configured
// test number gets replies. Numbers are compared digits-only.
func ShouldRespond(cfg store.AgentConfig, sender string) bool {
	if !cfg.TestMode {
		return true
	}
	want := channels.DigitsOnly(cfg.TestNumber)
	return want != "" && channels.DigitsOnly(sender) == want
}
