package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
	"github.com/nextlevelbuilder/leadclaw/internal/store/file"
	"github.com/nextlevelbuilder/leadclaw/pkg/protocol"
)

// fakeGraph serves the three connect calls. Each long-lived exchange returns a new token.
type fakeGraph struct {
	srv       *httptest.Server
	longCalls int32
	failStep  string // "code", "long" or "pages"
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()
	g := &fakeGraph{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case r.URL.Path == "/v19.0/oauth/access_token" && q.Get("grant_type") == "fb_exchange_token":
			if g.failStep == "long" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"message":"bad token","type":"OAuthException","code":190}}`))
				return
			}
			n := atomic.AddInt32(&g.longCalls, 1)
			json.NewEncoder(w).Encode(Token{AccessToken: fmt.Sprintf("long-%d", n), TokenType: "bearer", ExpiresIn: 5183944})
		case r.URL.Path == "/v19.0/oauth/access_token":
			if g.failStep == "code" || q.Get("code") == "" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"message":"code expired","type":"OAuthException","code":100}}`))
				return
			}
			if q.Get("client_secret") != "secret" {
				t.Errorf("client_secret = %q", q.Get("client_secret"))
			}
			json.NewEncoder(w).Encode(Token{AccessToken: "short", TokenType: "bearer"})
		case r.URL.Path == "/v19.0/me/accounts":
			if g.failStep == "pages" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"data": []Page{
				{ID: "p1", Name: "Loja Centro", Category: "Retail", AccessToken: "page-tok-1"},
				{ID: "p2", Name: "Loja Norte", Category: "Retail", AccessToken: "page-tok-2"},
			}})
		default:
			t.Errorf("unexpected request %s", r.URL)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGraph) client() *GraphClient {
	return NewGraphClient(Config{
		AppID:        "app",
		AppSecret:    "secret",
		GraphBase:    g.srv.URL,
		GraphVersion: "v19.0",
		RedirectURL:  "https://crm.example.com/v1/meta/callback",
	})
}

func newOrg(t *testing.T, stores *store.Stores) *store.OrganizationData {
	t.Helper()
	org, err := stores.Organizations.EnsureByAuthRef(context.Background(), "org_test", "Test")
	if err != nil {
		t.Fatal(err)
	}
	return org
}

func TestAuthorizeURL(t *testing.T) {
	c := NewGraphClient(Config{AppID: "app", RedirectURL: "https://crm.example.com/cb"})
	u, err := url.Parse(c.AuthorizeURL("st"))
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "www.facebook.com" || !strings.HasSuffix(u.Path, "/dialog/oauth") {
		t.Errorf("url = %s", u)
	}
	q := u.Query()
	if q.Get("client_id") != "app" || q.Get("state") != "st" || q.Get("redirect_uri") != "https://crm.example.com/cb" {
		t.Errorf("query = %v", q)
	}
	if !strings.Contains(q.Get("scope"), "leads_retrieval") {
		t.Errorf("scope = %q", q.Get("scope"))
	}
}

func TestExchangerIdempotentConnect(t *testing.T) {
	ctx := context.Background()
	g := newFakeGraph(t)
	stores, _ := file.NewStores("", "")
	org := newOrg(t, stores)
	x := NewExchanger(g.client(), stores.Meta)

	first, err := x.Complete(ctx, org.ID, "code-1")
	if err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if len(first.Pages) != 2 || first.Pages[0].ID != "p1" {
		t.Errorf("pages = %+v", first.Pages)
	}

	if _, err := x.Complete(ctx, org.ID, "code-2"); err != nil {
		t.Fatalf("second connect: %v", err)
	}

	integ, err := stores.Meta.GetIntegration(ctx, org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if integ.AccessToken != "long-2" {
		t.Errorf("token = %q, want the latest", integ.AccessToken)
	}
	if integ.VerifyToken != first.Integration.VerifyToken {
		t.Error("verify token rotated on reconnect")
	}
	if integ.TokenExpiresAt == nil {
		t.Error("expiry not stored")
	}

	page, err := stores.Meta.GetPage(ctx, org.ID, "p2")
	if err != nil || page.AccessToken != "page-tok-2" {
		t.Errorf("page token not persisted: %+v %v", page, err)
	}
}

func TestExchangerStepErrors(t *testing.T) {
	tests := []struct {
		failStep   string
		wantStep   Step
		wantReason string
	}{
		{"code", StepExchangeCode, protocol.MetaErrorTokenExchange},
		{"long", StepExchangeLong, protocol.MetaErrorTokenExchange},
		{"pages", StepFetchPages, protocol.MetaErrorServer},
	}
	for _, tt := range tests {
		t.Run(tt.failStep, func(t *testing.T) {
			ctx := context.Background()
			g := newFakeGraph(t)
			g.failStep = tt.failStep
			stores, _ := file.NewStores("", "")
			org := newOrg(t, stores)

			_, err := NewExchanger(g.client(), stores.Meta).Complete(ctx, org.ID, "code")
			var se *StepError
			if !errors.As(err, &se) {
				t.Fatalf("got %T %v", err, err)
			}
			if se.Step != tt.wantStep || se.Reason() != tt.wantReason {
				t.Errorf("step=%s reason=%s", se.Step, se.Reason())
			}
			if _, err := stores.Meta.GetIntegration(ctx, org.ID); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("integration persisted despite failure: %v", err)
			}
		})
	}
}
