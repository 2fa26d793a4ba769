package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// PGAgentStore implements store.AgentStore backed by Postgres.
type PGAgentStore struct {
	db *sql.DB
}

func NewPGAgentStore(db *sql.DB) *PGAgentStore {
	return &PGAgentStore{db: db}
}

const agentSelectCols = `id, org_id, name, description, status, is_default, config, created_at, updated_at`

func (s *PGAgentStore) Create(ctx context.Context, agent *store.AgentData) error {
	if err := store.RequireOrg(agent.OrgID); err != nil {
		return err
	}
	if agent.ID == uuid.Nil {
		agent.ID = store.GenNewID()
	}
	if agent.Status == "" {
		agent.Status = store.AgentStatusActive
	}
	cfg, err := json.Marshal(agent.Config)
	if err != nil {
		return fmt.Errorf("marshal agent config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if agent.IsDefault {
		if err := clearDefault(ctx, tx, agent.OrgID, agent.ID); err != nil {
			return err
		}
	}

	now := time.Now()
	agent.CreatedAt = now
	agent.UpdatedAt = now
	_, err = tx.ExecContext(ctx,
		`INSERT INTO agents (id, org_id, name, description, status, is_default, config, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		agent.ID, agent.OrgID, agent.Name, nilStr(agent.Description), agent.Status, agent.IsDefault, cfg, now)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return tx.Commit()
}

func (s *PGAgentStore) Get(ctx context.Context, orgID, id uuid.UUID) (*store.AgentData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	return scanAgent(s.db.QueryRowContext(ctx,
		`SELECT `+agentSelectCols+` FROM agents WHERE id = $1 AND org_id = $2`, id, orgID))
}

func (s *PGAgentStore) List(ctx context.Context, orgID uuid.UUID) ([]store.AgentData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+agentSelectCols+` FROM agents WHERE org_id = $1
		 ORDER BY is_default DESC, created_at ASC, id ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.AgentData
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (s *PGAgentStore) Update(ctx context.Context, agent *store.AgentData) error {
	if err := store.RequireOrg(agent.OrgID); err != nil {
		return err
	}
	cfg, err := json.Marshal(agent.Config)
	if err != nil {
		return fmt.Errorf("marshal agent config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if agent.IsDefault {
		if err := clearDefault(ctx, tx, agent.OrgID, agent.ID); err != nil {
			return err
		}
	}

	agent.UpdatedAt = time.Now()
	res, err := tx.ExecContext(ctx,
		`UPDATE agents SET name = $1, description = $2, status = $3, is_default = $4, config = $5, updated_at = $6
		 WHERE id = $7 AND org_id = $8`,
		agent.Name, nilStr(agent.Description), agent.Status, agent.IsDefault, cfg, agent.UpdatedAt,
		agent.ID, agent.OrgID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PGAgentStore) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	if err := store.RequireOrg(orgID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// clearDefault drops the default flag from every other agent of the tenant,
// keeping at most one default per organization.
func clearDefault(ctx context.Context, tx *sql.Tx, orgID, keep uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE agents SET is_default = false WHERE org_id = $1 AND is_default AND id <> $2`, orgID, keep)
	if err != nil {
		return fmt.Errorf("clear default agent: %w", err)
	}
	return nil
}

func scanAgent(row rowScanner) (*store.AgentData, error) {
	var a store.AgentData
	var desc *string
	var cfg []byte
	err := row.Scan(&a.ID, &a.OrgID, &a.Name, &desc, &a.Status, &a.IsDefault, &cfg, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	a.Description = derefStr(desc)
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &a.Config); err != nil {
			return nil, fmt.Errorf("decode agent config %s: %w", a.ID, err)
		}
	}
	return &a, nil
}
