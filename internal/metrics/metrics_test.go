package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T) string {
	t.Helper()
	Init()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestInstrumentRecordsRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/agents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := Instrument(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/agents/123", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}

	want := `http_requests_total{method="GET",route="GET /v1/agents/{id}",status="418"} 1`
	if body := scrape(t); !strings.Contains(body, want) {
		t.Errorf("missing %s", want)
	}
}

func TestDomainCounters(t *testing.T) {
	ObserveMessage("skipped", "test_mode")
	ObserveMessage("skipped", "test_mode")
	ObserveOAuth("success")
	ObserveLeads("backfill", 3, 1, 0)

	body := scrape(t)
	for _, want := range []string{
		`leadclaw_whatsapp_messages_total{outcome="skipped",reason="test_mode"} 2`,
		`leadclaw_meta_oauth_total{result="success"} 1`,
		`leadclaw_leads_imported_total{path="backfill",result="created"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s", want)
		}
	}
}
