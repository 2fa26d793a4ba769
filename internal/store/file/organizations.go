package file

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// OrganizationStore implements store.OrganizationStore in memory.
type OrganizationStore struct {
	db *DB
}

func (s *OrganizationStore) EnsureByAuthRef(_ context.Context, authOrgRef, name string) (*store.OrganizationData, error) {
	authOrgRef = strings.TrimSpace(authOrgRef)
	if authOrgRef == "" {
		return nil, fmt.Errorf("auth org ref is required")
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, o := range s.db.orgs {
		if o.AuthOrgRef == authOrgRef {
			cp := *o
			return &cp, nil
		}
	}
	if name == "" {
		name = authOrgRef
	}
	now := time.Now()
	o := &store.OrganizationData{
		BaseModel:      store.BaseModel{ID: store.GenNewID(), CreatedAt: now, UpdatedAt: now},
		Name:           name,
		AuthOrgRef:     authOrgRef,
		InstanceStatus: store.InstanceDisconnected,
	}
	s.db.orgs[o.ID] = o
	if err := s.db.commit(func() { delete(s.db.orgs, o.ID) }); err != nil {
		return nil, err
	}
	cp := *o
	return &cp, nil
}

func (s *OrganizationStore) GetByAuthRef(_ context.Context, authOrgRef string) (*store.OrganizationData, error) {
	return s.find(func(o *store.OrganizationData) bool { return o.AuthOrgRef == authOrgRef })
}

func (s *OrganizationStore) GetByInstanceName(_ context.Context, instanceName string) (*store.OrganizationData, error) {
	if instanceName == "" {
		return nil, store.ErrNotFound
	}
	return s.find(func(o *store.OrganizationData) bool { return o.Messaging.InstanceName == instanceName })
}

func (s *OrganizationStore) GetByID(_ context.Context, orgID uuid.UUID) (*store.OrganizationData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	return s.find(func(o *store.OrganizationData) bool { return o.ID == orgID })
}

func (s *OrganizationStore) UpdateMessaging(_ context.Context, orgID uuid.UUID, cfg store.MessagingConfig) error {
	if err := store.RequireOrg(orgID); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	o, ok := s.db.orgs[orgID]
	if !ok {
		return store.ErrNotFound
	}
	if cfg.InstanceName != "" {
		for _, other := range s.db.orgs {
			if other.ID != orgID && other.Messaging.InstanceName == cfg.InstanceName {
				return fmt.Errorf("instance name %q: %w", cfg.InstanceName, store.ErrDuplicate)
			}
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	prev, prevUpdated := o.Messaging, o.UpdatedAt
	o.Messaging = cfg
	o.UpdatedAt = time.Now()
	return s.db.commit(func() { o.Messaging, o.UpdatedAt = prev, prevUpdated })
}

func (s *OrganizationStore) UpdateInstanceStatus(_ context.Context, orgID uuid.UUID, status string) error {
	if err := store.RequireOrg(orgID); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	o, ok := s.db.orgs[orgID]
	if !ok {
		return store.ErrNotFound
	}
	prev, prevUpdated := o.InstanceStatus, o.UpdatedAt
	o.InstanceStatus = status
	o.UpdatedAt = time.Now()
	return s.db.commit(func() { o.InstanceStatus, o.UpdatedAt = prev, prevUpdated })
}

func (s *OrganizationStore) find(match func(*store.OrganizationData) bool) (*store.OrganizationData, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, o := range s.db.orgs {
		if match(o) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}
