package pg

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/crypto"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// PGOrganizationStore implements store.OrganizationStore backed by Postgres.
type PGOrganizationStore struct {
	db     *sql.DB
	encKey string // AES-256 key for the gateway API key
}

func NewPGOrganizationStore(db *sql.DB, encryptionKey string) *PGOrganizationStore {
	return &PGOrganizationStore{db: db, encKey: encryptionKey}
}

const orgSelectCols = `id, name, auth_org_ref, gateway_base_url, gateway_api_key, instance_name, instance_status, created_at, updated_at`

func (s *PGOrganizationStore) EnsureByAuthRef(ctx context.Context, authOrgRef, name string) (*store.OrganizationData, error) {
	authOrgRef = strings.TrimSpace(authOrgRef)
	if authOrgRef == "" {
		return nil, fmt.Errorf("auth org ref is required")
	}
	if name == "" {
		name = authOrgRef
	}
	now := time.Now()
	// The no-op DO UPDATE makes RETURNING yield the existing row on conflict.
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO organizations (id, name, auth_org_ref, instance_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (auth_org_ref) DO UPDATE SET auth_org_ref = EXCLUDED.auth_org_ref
		 RETURNING `+orgSelectCols,
		store.GenNewID(), name, authOrgRef, store.InstanceDisconnected, now)
	return s.scanOrg(row)
}

func (s *PGOrganizationStore) GetByAuthRef(ctx context.Context, authOrgRef string) (*store.OrganizationData, error) {
	return s.scanOrg(s.db.QueryRowContext(ctx,
		`SELECT `+orgSelectCols+` FROM organizations WHERE auth_org_ref = $1`, authOrgRef))
}

func (s *PGOrganizationStore) GetByInstanceName(ctx context.Context, instanceName string) (*store.OrganizationData, error) {
	if instanceName == "" {
		return nil, store.ErrNotFound
	}
	return s.scanOrg(s.db.QueryRowContext(ctx,
		`SELECT `+orgSelectCols+` FROM organizations WHERE instance_name = $1`, instanceName))
}

func (s *PGOrganizationStore) GetByID(ctx context.Context, orgID uuid.UUID) (*store.OrganizationData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	return s.scanOrg(s.db.QueryRowContext(ctx,
		`SELECT `+orgSelectCols+` FROM organizations WHERE id = $1`, orgID))
}

func (s *PGOrganizationStore) UpdateMessaging(ctx context.Context, orgID uuid.UUID, cfg store.MessagingConfig) error {
	if err := store.RequireOrg(orgID); err != nil {
		return err
	}
	apiKey, err := crypto.Seal(cfg.APIKey, s.encKey)
	if err != nil {
		return fmt.Errorf("encrypt gateway api key: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE organizations
		 SET gateway_base_url = $1, gateway_api_key = $2, instance_name = $3, updated_at = $4
		 WHERE id = $5`,
		nilStr(strings.TrimRight(cfg.BaseURL, "/")), nilStr(apiKey), nilStr(cfg.InstanceName), time.Now(), orgID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("instance name %q: %w", cfg.InstanceName, store.ErrDuplicate)
		}
		return err
	}
	return requireAffected(res)
}

func (s *PGOrganizationStore) UpdateInstanceStatus(ctx context.Context, orgID uuid.UUID, status string) error {
	if err := store.RequireOrg(orgID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET instance_status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), orgID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *PGOrganizationStore) scanOrg(row rowScanner) (*store.OrganizationData, error) {
	var org store.OrganizationData
	var baseURL, apiKey, instanceName, status *string
	err := row.Scan(&org.ID, &org.Name, &org.AuthOrgRef, &baseURL, &apiKey, &instanceName, &status,
		&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	org.Messaging.BaseURL = derefStr(baseURL)
	org.Messaging.InstanceName = derefStr(instanceName)
	org.InstanceStatus = derefStr(status)

	if apiKey != nil {
		plain, err := crypto.Open(*apiKey, s.encKey)
		if err != nil {
			slog.Warn("organizations.decrypt_api_key", "org_id", org.ID, "error", err)
		} else {
			org.Messaging.APIKey = plain
		}
	}
	return &org, nil
}
