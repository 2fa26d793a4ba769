package file

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// LeadStore implements store.LeadStore in memory.
type LeadStore struct {
	db *DB
}

func prepareLead(lead *store.LeadData) {
	if lead.ID == uuid.Nil {
		lead.ID = store.GenNewID()
	}
	if lead.Status == "" {
		lead.Status = store.LeadStatusNew
	}
	if lead.Source == "" {
		lead.Source = store.LeadSourceManual
	}
	now := time.Now()
	lead.CreatedAt = now
	lead.UpdatedAt = now
}

// externalExists must be called with db.mu held. It mirrors the
// (org_id, external_lead_id) unique index of the Postgres schema.
func (s *LeadStore) externalExists(orgID uuid.UUID, externalID string) bool {
	if externalID == "" {
		return false
	}
	for _, l := range s.db.leads {
		if l.OrgID == orgID && l.ExternalLeadID == externalID {
			return true
		}
	}
	return false
}

// put must be called with db.mu held. It stages the row without saving.
func (s *LeadStore) put(lead *store.LeadData) {
	cp := *lead
	cp.Metadata = maps.Clone(lead.Metadata)
	s.db.leads[cp.ID] = &cp
}

func (s *LeadStore) insert(lead *store.LeadData) error {
	s.put(lead)
	return s.db.commit(func() { delete(s.db.leads, lead.ID) })
}

func (s *LeadStore) InsertIfAbsent(_ context.Context, lead *store.LeadData) (bool, error) {
	if err := store.RequireOrg(lead.OrgID); err != nil {
		return false, err
	}
	if lead.ExternalLeadID == "" {
		return false, fmt.Errorf("external lead id is required")
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.externalExists(lead.OrgID, lead.ExternalLeadID) {
		return false, nil
	}
	prepareLead(lead)
	if err := s.insert(lead); err != nil {
		return false, err
	}
	return true, nil
}

// InsertAllIfAbsent is InsertIfAbsent for a batch with a single snapshot write.
// If that write fails nothing from the batch is kept.
func (s *LeadStore) InsertAllIfAbsent(_ context.Context, leads []*store.LeadData) ([]bool, error) {
	for _, l := range leads {
		if err := store.RequireOrg(l.OrgID); err != nil {
			return nil, err
		}
		if l.ExternalLeadID == "" {
			return nil, fmt.Errorf("external lead id is required")
		}
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	created := make([]bool, len(leads))
	var added []uuid.UUID
	for i, l := range leads {
		if s.externalExists(l.OrgID, l.ExternalLeadID) {
			continue
		}
		prepareLead(l)
		s.put(l)
		added = append(added, l.ID)
		created[i] = true
	}
	if len(added) == 0 {
		return created, nil
	}
	err := s.db.commit(func() {
		for _, id := range added {
			delete(s.db.leads, id)
		}
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *LeadStore) Create(_ context.Context, lead *store.LeadData) error {
	if err := store.RequireOrg(lead.OrgID); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.externalExists(lead.OrgID, lead.ExternalLeadID) {
		return store.ErrDuplicate
	}
	prepareLead(lead)
	return s.insert(lead)
}

func (s *LeadStore) List(_ context.Context, orgID uuid.UUID, opts store.LeadListOpts) ([]store.LeadData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	var result []store.LeadData
	for _, l := range s.db.leads {
		if l.OrgID != orgID {
			continue
		}
		if opts.StageID != nil && (l.StageID == nil || *l.StageID != *opts.StageID) {
			continue
		}
		if opts.Source != "" && l.Source != opts.Source {
			continue
		}
		result = append(result, *l)
	}
	s.db.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() > result[j].ID.String()
	})

	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := max(opts.Offset, 0)
	if offset >= len(result) {
		return nil, nil
	}
	return result[offset:min(offset+limit, len(result))], nil
}

func (s *LeadStore) MoveStage(_ context.Context, orgID, leadID uuid.UUID, stageID *uuid.UUID) error {
	if err := store.RequireOrg(orgID); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	l, ok := s.db.leads[leadID]
	if !ok || l.OrgID != orgID {
		return store.ErrNotFound
	}
	prevStage, prevUpdated := l.StageID, l.UpdatedAt
	if stageID != nil {
		st, ok := s.db.stages[*stageID]
		if !ok || st.OrgID != orgID {
			return store.ErrNotFound
		}
		id := *stageID
		l.StageID = &id
	} else {
		l.StageID = nil
	}
	l.UpdatedAt = time.Now()
	return s.db.commit(func() { l.StageID, l.UpdatedAt = prevStage, prevUpdated })
}

func (s *LeadStore) ListStages(_ context.Context, orgID uuid.UUID) ([]store.StageData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	var result []store.StageData
	for _, st := range s.db.stages {
		if st.OrgID == orgID {
			result = append(result, *st)
		}
	}
	s.db.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Position != result[j].Position {
			return result[i].Position < result[j].Position
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *LeadStore) CreateStage(_ context.Context, stage *store.StageData) error {
	if err := store.RequireOrg(stage.OrgID); err != nil {
		return err
	}
	if stage.ID == uuid.Nil {
		stage.ID = store.GenNewID()
	}
	now := time.Now()
	stage.CreatedAt = now
	stage.UpdatedAt = now

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cp := *stage
	s.db.stages[cp.ID] = &cp
	return s.db.commit(func() { delete(s.db.stages, cp.ID) })
}
