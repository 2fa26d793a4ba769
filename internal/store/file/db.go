// Package file implements the store interfaces in memory, optionally snapshotting
// state to a JSON file. It backs standalone runs (no Postgres DSN) and tests.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/crypto"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

const snapshotName = "leadclaw-state.json"

// DB holds every table. All four stores share its lock.
type DB struct {
	mu      sync.RWMutex
	storage string // directory for the snapshot; "" keeps state in memory only
	encKey  string // seals gateway keys and Meta tokens in the snapshot; "" writes them as is

	orgs         map[uuid.UUID]*store.OrganizationData
	agents       map[uuid.UUID]*store.AgentData
	leads        map[uuid.UUID]*store.LeadData
	stages       map[uuid.UUID]*store.StageData
	integrations map[uuid.UUID]*store.MetaIntegrationData
	pages        map[uuid.UUID][]store.MetaPageData
}

// NewStores returns file-backed stores. An empty storage dir keeps everything in memory.
// Secrets in the snapshot are sealed with encKey, as the Postgres stores do.
func NewStores(storage, encKey string) (*store.Stores, error) {
	db := &DB{
		storage:      storage,
		encKey:       encKey,
		orgs:         make(map[uuid.UUID]*store.OrganizationData),
		agents:       make(map[uuid.UUID]*store.AgentData),
		leads:        make(map[uuid.UUID]*store.LeadData),
		stages:       make(map[uuid.UUID]*store.StageData),
		integrations: make(map[uuid.UUID]*store.MetaIntegrationData),
		pages:        make(map[uuid.UUID][]store.MetaPageData),
	}
	if storage != "" {
		if err := os.MkdirAll(storage, 0o700); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		if err := db.load(); err != nil {
			return nil, err
		}
	}
	return &store.Stores{
		Organizations: &OrganizationStore{db: db},
		Agents:        &AgentStore{db: db},
		Leads:         &LeadStore{db: db},
		Meta:          &MetaStore{db: db},
	}, nil
}

// Secrets are json:"-" on the domain types, so the snapshot uses its own records.
type orgRecord struct {
	store.OrganizationData
	APIKey string `json:"api_key"`
}

type integrationRecord struct {
	store.MetaIntegrationData
	AccessToken string `json:"access_token"`
}

type pageRecord struct {
	store.MetaPageData
	AccessToken string `json:"access_token"`
}

type snapshot struct {
	Organizations []orgRecord         `json:"organizations"`
	Agents        []store.AgentData   `json:"agents"`
	Leads         []store.LeadData    `json:"leads"`
	Stages        []store.StageData   `json:"stages"`
	Integrations  []integrationRecord `json:"meta_integrations"`
	Pages         []pageRecord        `json:"meta_pages"`
}

func (db *DB) load() error {
	data, err := os.ReadFile(filepath.Join(db.storage, snapshotName))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	for _, r := range snap.Organizations {
		o := r.OrganizationData
		if o.Messaging.APIKey, err = db.open(r.APIKey); err != nil {
			return fmt.Errorf("organization %s api key: %w", o.ID, err)
		}
		db.orgs[o.ID] = &o
	}
	for i := range snap.Agents {
		a := snap.Agents[i]
		db.agents[a.ID] = &a
	}
	for i := range snap.Leads {
		l := snap.Leads[i]
		db.leads[l.ID] = &l
	}
	for i := range snap.Stages {
		s := snap.Stages[i]
		db.stages[s.ID] = &s
	}
	for _, r := range snap.Integrations {
		m := r.MetaIntegrationData
		if m.AccessToken, err = db.open(r.AccessToken); err != nil {
			return fmt.Errorf("meta integration %s token: %w", m.OrgID, err)
		}
		db.integrations[m.OrgID] = &m
	}
	for _, r := range snap.Pages {
		p := r.MetaPageData
		if p.AccessToken, err = db.open(r.AccessToken); err != nil {
			return fmt.Errorf("meta page %s token: %w", p.PageID, err)
		}
		db.pages[p.OrgID] = append(db.pages[p.OrgID], p)
	}
	return nil
}

func (db *DB) open(v string) (string, error) { return crypto.Open(v, db.encKey) }

// commit saves the snapshot and runs undo when that fails, so memory never
// holds a change the caller was told did not happen. Caller holds db.mu.
func (db *DB) commit(undo func()) error {
	if err := db.save(); err != nil {
		if undo != nil {
			undo()
		}
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// save writes the snapshot atomically (temp file then rename). Caller holds db.mu.
func (db *DB) save() error {
	if db.storage == "" {
		return nil
	}
	var snap snapshot
	for _, o := range db.orgs {
		key, err := crypto.Seal(o.Messaging.APIKey, db.encKey)
		if err != nil {
			return fmt.Errorf("seal api key: %w", err)
		}
		snap.Organizations = append(snap.Organizations, orgRecord{OrganizationData: *o, APIKey: key})
	}
	for _, a := range db.agents {
		snap.Agents = append(snap.Agents, *a)
	}
	for _, l := range db.leads {
		snap.Leads = append(snap.Leads, *l)
	}
	for _, s := range db.stages {
		snap.Stages = append(snap.Stages, *s)
	}
	for _, m := range db.integrations {
		tok, err := crypto.Seal(m.AccessToken, db.encKey)
		if err != nil {
			return fmt.Errorf("seal meta token: %w", err)
		}
		snap.Integrations = append(snap.Integrations, integrationRecord{MetaIntegrationData: *m, AccessToken: tok})
	}
	for _, ps := range db.pages {
		for _, p := range ps {
			tok, err := crypto.Seal(p.AccessToken, db.encKey)
			if err != nil {
				return fmt.Errorf("seal page token: %w", err)
			}
			snap.Pages = append(snap.Pages, pageRecord{MetaPageData: p, AccessToken: tok})
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(db.storage, "state-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, filepath.Join(db.storage, snapshotName)); err != nil {
		return err
	}
	cleanup = false
	return nil
}
