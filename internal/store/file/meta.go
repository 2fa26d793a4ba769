package file

import (
	"context"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// MetaStore implements store.MetaStore in memory.
type MetaStore struct {
	db *DB
}

func (s *MetaStore) UpsertIntegration(_ context.Context, orgID uuid.UUID, accessToken string, expiresAt *time.Time) (*store.MetaIntegrationData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	now := time.Now()
	m, ok := s.db.integrations[orgID]
	undo := func() { delete(s.db.integrations, orgID) }
	if ok {
		prev := *m
		undo = func() { *m = prev }
	} else {
		m = &store.MetaIntegrationData{
			OrgID:        orgID,
			VerifyToken:  store.NewVerifyToken(),
			FieldMapping: map[string]string{},
			CreatedAt:    now,
		}
		s.db.integrations[orgID] = m
	}
	m.AccessToken = accessToken
	m.TokenExpiresAt = expiresAt
	m.UpdatedAt = now
	if err := s.db.commit(undo); err != nil {
		return nil, err
	}
	return copyIntegration(m), nil
}

func (s *MetaStore) GetIntegration(_ context.Context, orgID uuid.UUID) (*store.MetaIntegrationData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	m, ok := s.db.integrations[orgID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyIntegration(m), nil
}

func (s *MetaStore) VerifyTokenExists(_ context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, m := range s.db.integrations {
		if m.VerifyToken == token {
			return true, nil
		}
	}
	return false, nil
}

func (s *MetaStore) ReplacePages(_ context.Context, orgID uuid.UUID, pages []store.MetaPageData) error {
	if err := store.RequireOrg(orgID); err != nil {
		return err
	}
	now := time.Now()
	cp := make([]store.MetaPageData, len(pages))
	for i, p := range pages {
		p.OrgID = orgID
		p.UpdatedAt = now
		cp[i] = p
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	prev, had := s.db.pages[orgID]
	s.db.pages[orgID] = cp
	return s.db.commit(func() {
		if had {
			s.db.pages[orgID] = prev
		} else {
			delete(s.db.pages, orgID)
		}
	})
}

func (s *MetaStore) ListPages(_ context.Context, orgID uuid.UUID) ([]store.MetaPageData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	result := append([]store.MetaPageData(nil), s.db.pages[orgID]...)
	s.db.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MetaStore) GetPage(_ context.Context, orgID uuid.UUID, pageID string) (*store.MetaPageData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, p := range s.db.pages[orgID] {
		if p.PageID == pageID {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *MetaStore) GetPageByID(_ context.Context, pageID string) (*store.MetaPageData, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var best *store.MetaPageData
	for _, ps := range s.db.pages {
		for i := range ps {
			if ps[i].PageID == pageID && (best == nil || ps[i].UpdatedAt.After(best.UpdatedAt)) {
				best = &ps[i]
			}
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func copyIntegration(m *store.MetaIntegrationData) *store.MetaIntegrationData {
	cp := *m
	cp.FieldMapping = maps.Clone(m.FieldMapping)
	return &cp
}
