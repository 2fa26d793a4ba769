package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/crypto"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// PGMetaStore implements store.MetaStore backed by Postgres.
type PGMetaStore struct {
	db     *sql.DB
	encKey string // AES-256 key for user and page tokens
}

func NewPGMetaStore(db *sql.DB, encryptionKey string) *PGMetaStore {
	return &PGMetaStore{db: db, encKey: encryptionKey}
}

const integrationSelectCols = `org_id, access_token, verify_token, field_mapping, token_expires_at, created_at, updated_at`

// UpsertIntegration generates the verify token only in the INSERT arm.
// The DO UPDATE arm leaves verify_token and created_at alone.
func (s *PGMetaStore) UpsertIntegration(ctx context.Context, orgID uuid.UUID, accessToken string, expiresAt *time.Time) (*store.MetaIntegrationData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	token, err := crypto.Seal(accessToken, s.encKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	now := time.Now()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO meta_integrations (org_id, access_token, verify_token, field_mapping, token_expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, '{}', $4, $5, $5)
		 ON CONFLICT (org_id) DO UPDATE SET
		   access_token = EXCLUDED.access_token,
		   token_expires_at = EXCLUDED.token_expires_at,
		   updated_at = EXCLUDED.updated_at
		 RETURNING `+integrationSelectCols,
		orgID, token, store.NewVerifyToken(), expiresAt, now)
	return s.scanIntegration(row)
}

func (s *PGMetaStore) GetIntegration(ctx context.Context, orgID uuid.UUID) (*store.MetaIntegrationData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	return s.scanIntegration(s.db.QueryRowContext(ctx,
		`SELECT `+integrationSelectCols+` FROM meta_integrations WHERE org_id = $1`, orgID))
}

func (s *PGMetaStore) VerifyTokenExists(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM meta_integrations WHERE verify_token = $1)`, token).Scan(&exists)
	return exists, err
}

func (s *PGMetaStore) ReplacePages(ctx context.Context, orgID uuid.UUID, pages []store.MetaPageData) error {
	if err := store.RequireOrg(orgID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM meta_pages WHERE org_id = $1`, orgID); err != nil {
		return fmt.Errorf("clear pages: %w", err)
	}
	now := time.Now()
	for _, p := range pages {
		token, err := crypto.Seal(p.AccessToken, s.encKey)
		if err != nil {
			return fmt.Errorf("encrypt page token %s: %w", p.PageID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta_pages (org_id, page_id, name, category, access_token, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			orgID, p.PageID, p.Name, nilStr(p.Category), token, now); err != nil {
			return fmt.Errorf("insert page %s: %w", p.PageID, err)
		}
	}
	return tx.Commit()
}

const pageSelectCols = `org_id, page_id, name, category, access_token, updated_at`

func (s *PGMetaStore) ListPages(ctx context.Context, orgID uuid.UUID) ([]store.MetaPageData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pageSelectCols+` FROM meta_pages WHERE org_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.MetaPageData
	for rows.Next() {
		p, err := s.scanPage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (s *PGMetaStore) GetPage(ctx context.Context, orgID uuid.UUID, pageID string) (*store.MetaPageData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	return s.scanPage(s.db.QueryRowContext(ctx,
		`SELECT `+pageSelectCols+` FROM meta_pages WHERE org_id = $1 AND page_id = $2`, orgID, pageID))
}

// GetPageByID returns the most recently connected tenant's copy of the page.
func (s *PGMetaStore) GetPageByID(ctx context.Context, pageID string) (*store.MetaPageData, error) {
	return s.scanPage(s.db.QueryRowContext(ctx,
		`SELECT `+pageSelectCols+` FROM meta_pages WHERE page_id = $1 ORDER BY updated_at DESC LIMIT 1`, pageID))
}

func (s *PGMetaStore) scanIntegration(row rowScanner) (*store.MetaIntegrationData, error) {
	var m store.MetaIntegrationData
	var mapping []byte
	var expires sql.NullTime
	err := row.Scan(&m.OrgID, &m.AccessToken, &m.VerifyToken, &mapping, &expires, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if expires.Valid {
		t := expires.Time
		m.TokenExpiresAt = &t
	}
	if len(mapping) > 0 {
		_ = json.Unmarshal(mapping, &m.FieldMapping)
	}
	plain, err := crypto.Open(m.AccessToken, s.encKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	m.AccessToken = plain
	return &m, nil
}

func (s *PGMetaStore) scanPage(row rowScanner) (*store.MetaPageData, error) {
	var p store.MetaPageData
	var category *string
	err := row.Scan(&p.OrgID, &p.PageID, &p.Name, &category, &p.AccessToken, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.Category = derefStr(category)
	plain, err := crypto.Open(p.AccessToken, s.encKey)
	if err != nil {
		slog.Warn("meta_pages.decrypt_token", "page_id", p.PageID, "error", err)
		p.AccessToken = ""
	} else {
		p.AccessToken = plain
	}
	return &p, nil
}
