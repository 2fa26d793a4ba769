package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
	"github.com/nextlevelbuilder/leadclaw/internal/store/file"
)

func newAgentsMux(t *testing.T) *http.ServeMux {
	t.Helper()
	stores, _ := file.NewStores("", "")
	mux := http.NewServeMux()
	NewAgentsHandler(NewAuthenticator(AuthConfig{}, stores.Organizations), stores.Agents).RegisterRoutes(mux)
	NewLeadsHandler(NewAuthenticator(AuthConfig{}, stores.Organizations), stores.Leads).RegisterRoutes(mux)
	return mux
}

func doAs(mux *http.ServeMux, orgRef, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(HeaderOrgRef, orgRef)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAgentCreateValidation(t *testing.T) {
	mux := newAgentsMux(t)
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"defaults to google", `{"name":"Ana"}`, http.StatusCreated},
		{"placeholder provider accepted", `{"name":"Ana","config":{"provider":"openai"}}`, http.StatusCreated},
		{"unknown provider", `{"name":"Ana","config":{"provider":"mistral"}}`, http.StatusBadRequest},
		{"missing name", `{"config":{"provider":"google"}}`, http.StatusBadRequest},
		{"bad status", `{"name":"Ana","status":"paused"}`, http.StatusBadRequest},
		{"test mode without number", `{"name":"Ana","config":{"testMode":true}}`, http.StatusBadRequest},
		{"temperature out of range", `{"name":"Ana","config":{"temperature":3}}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doAs(mux, "org_1", http.MethodPost, "/v1/agents", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}
}

func TestAgentsTenantIsolation(t *testing.T) {
	mux := newAgentsMux(t)

	rec := doAs(mux, "org_1", http.MethodPost, "/v1/agents", `{"name":"Ana","is_default":true}`)
	var created store.AgentData
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.Config.Provider != store.ProviderGoogle || created.Status != store.AgentStatusActive {
		t.Errorf("created = %+v", created)
	}

	if rec := doAs(mux, "org_2", http.MethodGet, "/v1/agents/"+created.ID.String(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("cross-tenant get: %d", rec.Code)
	}
	if rec := doAs(mux, "org_2", http.MethodDelete, "/v1/agents/"+created.ID.String(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("cross-tenant delete: %d", rec.Code)
	}

	var list struct {
		Agents []store.AgentData `json:"agents"`
	}
	json.Unmarshal(doAs(mux, "org_2", http.MethodGet, "/v1/agents", "").Body.Bytes(), &list)
	if len(list.Agents) != 0 {
		t.Errorf("org_2 sees %d agents", len(list.Agents))
	}

	rec = doAs(mux, "org_1", http.MethodPut, "/v1/agents/"+created.ID.String(), `{"name":"Ana 2","status":"inactive"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("update: %d %s", rec.Code, rec.Body)
	}
	if rec := doAs(mux, "org_1", http.MethodGet, "/v1/agents/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: %d", rec.Code)
	}
}

func TestLeadsCreateAndMove(t *testing.T) {
	mux := newAgentsMux(t)

	rec := doAs(mux, "org_1", http.MethodPost, "/v1/stages", `{"name":"Novo","position":0}`)
	var stage store.StageData
	json.Unmarshal(rec.Body.Bytes(), &stage)

	rec = doAs(mux, "org_1", http.MethodPost, "/v1/leads", `{"name":"João","phone":"5511999999999"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create lead: %d %s", rec.Code, rec.Body)
	}
	var lead store.LeadData
	json.Unmarshal(rec.Body.Bytes(), &lead)
	if lead.Source != store.LeadSourceManual {
		t.Errorf("source = %q", lead.Source)
	}

	body := `{"stage_id":"` + stage.ID.String() + `"}`
	if rec := doAs(mux, "org_1", http.MethodPut, "/v1/leads/"+lead.ID.String()+"/stage", body); rec.Code != http.StatusOK {
		t.Errorf("move: %d %s", rec.Code, rec.Body)
	}

	doAs(mux, "org_2", http.MethodGet, "/v1/stages", "")
	if rec := doAs(mux, "org_2", http.MethodPut, "/v1/leads/"+lead.ID.String()+"/stage", body); rec.Code != http.StatusNotFound {
		t.Errorf("cross-tenant move: %d", rec.Code)
	}

	var list struct {
		Leads []store.LeadData `json:"leads"`
	}
	json.Unmarshal(doAs(mux, "org_1", http.MethodGet, "/v1/leads?stage_id="+stage.ID.String(), "").Body.Bytes(), &list)
	if len(list.Leads) != 1 || list.Leads[0].ID != lead.ID {
		t.Errorf("filtered leads = %+v", list.Leads)
	}
}
