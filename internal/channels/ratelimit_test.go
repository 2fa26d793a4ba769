package channels

import "testing"

func TestWebhookRateLimiter(t *testing.T) {
	rl := NewWebhookRateLimiter(3)
	for i := 0; i < 3; i++ {
		if !rl.Allow("inst_abc") {
			t.Fatalf("request %d rejected within burst", i+1)
		}
	}
	if rl.Allow("inst_abc") {
		t.Error("fourth request allowed")
	}
	if !rl.Allow("other") {
		t.Error("separate key should have its own bucket")
	}
}

func TestWebhookRateLimiterDisabled(t *testing.T) {
	rl := NewWebhookRateLimiter(0)
	for i := 0; i < 100; i++ {
		if !rl.Allow("k") {
			t.Fatal("disabled limiter rejected a request")
		}
	}
	var nilLimiter *WebhookRateLimiter
	if !nilLimiter.Allow("k") {
		t.Error("nil limiter should allow")
	}
}

func TestWebhookRateLimiterKeyCap(t *testing.T) {
	rl := NewWebhookRateLimiter(1)
	for i := 0; i < maxTrackedKeys+10; i++ {
		rl.Allow(string(rune('a'+i%26)) + string(rune(i)))
	}
	if len(rl.entries) > maxTrackedKeys {
		t.Errorf("tracked keys = %d, cap %d", len(rl.entries), maxTrackedKeys)
	}
}
