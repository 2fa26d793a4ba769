package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

func newOrg(t *testing.T, stores *store.Stores, ref string) *store.OrganizationData {
	t.Helper()
	org, err := stores.Organizations.EnsureByAuthRef(context.Background(), ref, "Acme")
	if err != nil {
		t.Fatalf("EnsureByAuthRef: %v", err)
	}
	return org
}

func TestEnsureByAuthRefIdempotent(t *testing.T) {
	stores, _ := NewStores("", "")
	a := newOrg(t, stores, "org_1")
	b := newOrg(t, stores, "org_1")
	if a.ID != b.ID {
		t.Fatalf("second ensure created a new org: %s vs %s", a.ID, b.ID)
	}
	if a.MessagingStatus() != store.InstanceDisconnected {
		t.Errorf("status = %q", a.MessagingStatus())
	}
}

func TestUpsertIntegrationIdempotentConnect(t *testing.T) {
	stores, _ := NewStores("", "")
	ctx := context.Background()
	org := newOrg(t, stores, "org_1")

	first, err := stores.Meta.UpsertIntegration(ctx, org.ID, "token-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := stores.Meta.UpsertIntegration(ctx, org.ID, "token-2", nil)
	if err != nil {
		t.Fatal(err)
	}

	if second.AccessToken != "token-2" {
		t.Errorf("token = %q, want token-2", second.AccessToken)
	}
	if second.VerifyToken != first.VerifyToken {
		t.Errorf("verify token rotated: %q -> %q", first.VerifyToken, second.VerifyToken)
	}
	if len(first.VerifyToken) != 64 {
		t.Errorf("verify token length = %d", len(first.VerifyToken))
	}

	db := stores.Meta.(*MetaStore).db
	if n := len(db.integrations); n != 1 {
		t.Errorf("integration rows = %d, want 1", n)
	}
	ok, _ := stores.Meta.VerifyTokenExists(ctx, first.VerifyToken)
	if !ok {
		t.Error("verify token not found")
	}
}

func TestInsertIfAbsentPerTenant(t *testing.T) {
	stores, _ := NewStores("", "")
	ctx := context.Background()
	orgA := newOrg(t, stores, "a")
	orgB := newOrg(t, stores, "b")

	lead := func(org uuid.UUID) *store.LeadData {
		return &store.LeadData{OrgID: org, Name: "Ana", ExternalLeadID: "lead-1", Source: store.LeadSourceFacebookAds}
	}

	tests := []struct {
		name string
		org  uuid.UUID
		want bool
	}{
		{"first insert", orgA.ID, true},
		{"same tenant duplicate", orgA.ID, false},
		{"other tenant same id", orgB.ID, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created, err := stores.Leads.InsertIfAbsent(ctx, lead(tt.org))
			if err != nil {
				t.Fatal(err)
			}
			if created != tt.want {
				t.Errorf("created = %v, want %v", created, tt.want)
			}
		})
	}

	leads, _ := stores.Leads.List(ctx, orgA.ID, store.LeadListOpts{})
	if len(leads) != 1 {
		t.Errorf("tenant A leads = %d, want 1", len(leads))
	}
}

func TestAgentDefaultIsExclusive(t *testing.T) {
	stores, _ := NewStores("", "")
	ctx := context.Background()
	org := newOrg(t, stores, "org_1")

	first := &store.AgentData{OrgID: org.ID, Name: "first", IsDefault: true}
	second := &store.AgentData{OrgID: org.ID, Name: "second"}
	for _, a := range []*store.AgentData{first, second} {
		if err := stores.Agents.Create(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	second.IsDefault = true
	if err := stores.Agents.Update(ctx, second); err != nil {
		t.Fatal(err)
	}

	agents, _ := stores.Agents.List(ctx, org.ID)
	if len(agents) != 2 || agents[0].Name != "second" || agents[1].IsDefault {
		t.Fatalf("unexpected order/defaults: %+v", agents)
	}
}

func TestMoveStageRejectsForeignStage(t *testing.T) {
	stores, _ := NewStores("", "")
	ctx := context.Background()
	orgA := newOrg(t, stores, "a")
	orgB := newOrg(t, stores, "b")

	stage := &store.StageData{OrgID: orgB.ID, Name: "Won"}
	if err := stores.Leads.CreateStage(ctx, stage); err != nil {
		t.Fatal(err)
	}
	lead := &store.LeadData{OrgID: orgA.ID, Name: "Ana"}
	if err := stores.Leads.Create(ctx, lead); err != nil {
		t.Fatal(err)
	}
	if err := stores.Leads.MoveStage(ctx, orgA.ID, lead.ID, &stage.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	stores, err := NewStores(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	org := newOrg(t, stores, "org_1")
	cfg := store.MessagingConfig{BaseURL: "https://gw.example.com/", APIKey: "secret", InstanceName: "inst_abc"}
	if err := stores.Organizations.UpdateMessaging(ctx, org.ID, cfg); err != nil {
		t.Fatal(err)
	}
	if err := stores.Meta.ReplacePages(ctx, org.ID, []store.MetaPageData{{PageID: "p1", Name: "Page", AccessToken: "page-tok"}}); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewStores(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Organizations.GetByInstanceName(ctx, "inst_abc")
	if err != nil {
		t.Fatalf("GetByInstanceName after reload: %v", err)
	}
	if got.Messaging.APIKey != "secret" || got.Messaging.BaseURL != "https://gw.example.com" {
		t.Errorf("messaging = %+v", got.Messaging)
	}
	page, err := reopened.Meta.GetPageByID(ctx, "p1")
	if err != nil || page.AccessToken != "page-tok" {
		t.Errorf("page = %+v, err = %v", page, err)
	}
}

func TestSnapshotSealsSecrets(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	const key = "0123456789abcdef0123456789abcdef"

	stores, err := NewStores(dir, key)
	if err != nil {
		t.Fatal(err)
	}
	org := newOrg(t, stores, "org_1")
	if err := stores.Organizations.UpdateMessaging(ctx, org.ID, store.MessagingConfig{BaseURL: "https://gw.example.com", APIKey: "gw-secret", InstanceName: "inst_abc"}); err != nil {
		t.Fatal(err)
	}
	if _, err := stores.Meta.UpsertIntegration(ctx, org.ID, "long-lived-secret", nil); err != nil {
		t.Fatal(err)
	}
	if err := stores.Meta.ReplacePages(ctx, org.ID, []store.MetaPageData{{PageID: "p1", Name: "Page", AccessToken: "page-secret"}}); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, snapshotName))
	if err != nil {
		t.Fatal(err)
	}
	for _, secret := range []string{"gw-secret", "long-lived-secret", "page-secret"} {
		if strings.Contains(string(raw), secret) {
			t.Errorf("snapshot contains %q in plaintext", secret)
		}
	}

	reopened, err := NewStores(dir, key)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Organizations.GetByID(ctx, org.ID)
	if err != nil || got.Messaging.APIKey != "gw-secret" {
		t.Errorf("api key after reload = %+v, %v", got, err)
	}
	integ, err := reopened.Meta.GetIntegration(ctx, org.ID)
	if err != nil || integ.AccessToken != "long-lived-secret" {
		t.Errorf("integration after reload = %+v, %v", integ, err)
	}
	page, err := reopened.Meta.GetPageByID(ctx, "p1")
	if err != nil || page.AccessToken != "page-secret" {
		t.Errorf("page after reload = %+v, %v", page, err)
	}

	if _, err := NewStores(dir, "another-key"); err == nil {
		t.Error("reopening with the wrong key should fail")
	}
}

func TestFailedSaveLeavesNoRow(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	ctx := context.Background()
	stores, err := NewStores(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	org := newOrg(t, stores, "org_1")
	bulk := stores.Leads.(store.BulkLeadInserter)

	// Without its directory the snapshot cannot be written.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	lead := func(ext string) *store.LeadData {
		return &store.LeadData{OrgID: org.ID, Name: ext, ExternalLeadID: ext}
	}
	if _, err := stores.Leads.InsertIfAbsent(ctx, lead("L1")); err == nil {
		t.Fatal("InsertIfAbsent: expected save error")
	}
	if _, err := bulk.InsertAllIfAbsent(ctx, []*store.LeadData{lead("L2"), lead("L3")}); err == nil {
		t.Fatal("InsertAllIfAbsent: expected save error")
	}
	if err := stores.Organizations.UpdateInstanceStatus(ctx, org.ID, store.InstanceConnected); err == nil {
		t.Fatal("UpdateInstanceStatus: expected save error")
	}
	if got, _ := stores.Organizations.GetByID(ctx, org.ID); got.InstanceStatus != store.InstanceDisconnected {
		t.Errorf("status after failed save = %q", got.InstanceStatus)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	created, err := bulk.InsertAllIfAbsent(ctx, []*store.LeadData{lead("L1"), lead("L2"), lead("L3"), lead("L1")})
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{true, true, true, false}
	for i := range want {
		if created[i] != want[i] {
			t.Errorf("created = %v, want %v", created, want)
			break
		}
	}
}
