package file

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// AgentStore implements store.AgentStore in memory.
type AgentStore struct {
	db *DB
}

func (s *AgentStore) Create(_ context.Context, agent *store.AgentData) error {
	if err := store.RequireOrg(agent.OrgID); err != nil {
		return err
	}
	if agent.ID == uuid.Nil {
		agent.ID = store.GenNewID()
	}
	if agent.Status == "" {
		agent.Status = store.AgentStatusActive
	}
	now := time.Now()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	restore := func() {}
	if agent.IsDefault {
		restore = s.clearDefault(agent.OrgID, agent.ID)
	}
	cp := *agent
	s.db.agents[cp.ID] = &cp
	return s.db.commit(func() {
		delete(s.db.agents, cp.ID)
		restore()
	})
}

func (s *AgentStore) Get(_ context.Context, orgID, id uuid.UUID) (*store.AgentData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	a, ok := s.db.agents[id]
	if !ok || a.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *AgentStore) List(_ context.Context, orgID uuid.UUID) ([]store.AgentData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	var result []store.AgentData
	for _, a := range s.db.agents {
		if a.OrgID == orgID {
			result = append(result, *a)
		}
	}
	s.db.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return store.AgentOrderLess(result[i], result[j]) })
	return result, nil
}

func (s *AgentStore) Update(_ context.Context, agent *store.AgentData) error {
	if err := store.RequireOrg(agent.OrgID); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	cur, ok := s.db.agents[agent.ID]
	if !ok || cur.OrgID != agent.OrgID {
		return store.ErrNotFound
	}
	restore := func() {}
	if agent.IsDefault {
		restore = s.clearDefault(agent.OrgID, agent.ID)
	}
	agent.CreatedAt = cur.CreatedAt
	agent.UpdatedAt = time.Now()
	cp := *agent
	s.db.agents[cp.ID] = &cp
	return s.db.commit(func() {
		s.db.agents[cur.ID] = cur
		restore()
	})
}

func (s *AgentStore) Delete(_ context.Context, orgID, id uuid.UUID) error {
	if err := store.RequireOrg(orgID); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.agents[id]
	if !ok || a.OrgID != orgID {
		return store.ErrNotFound
	}
	delete(s.db.agents, id)
	return s.db.commit(func() { s.db.agents[id] = a })
}

// clearDefault must be called with db.mu held. The returned func re-marks
// the agents it cleared.
func (s *AgentStore) clearDefault(orgID, keep uuid.UUID) func() {
	var cleared []*store.AgentData
	for _, a := range s.db.agents {
		if a.OrgID == orgID && a.ID != keep && a.IsDefault {
			a.IsDefault = false
			cleared = append(cleared, a)
		}
	}
	return func() {
		for _, a := range cleared {
			a.IsDefault = true
		}
	}
}
