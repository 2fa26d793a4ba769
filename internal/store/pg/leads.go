package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// PGLeadStore implements store.LeadStore backed by Postgres.
type PGLeadStore struct {
	db *sql.DB
}

func NewPGLeadStore(db *sql.DB) *PGLeadStore {
	return &PGLeadStore{db: db}
}

const leadSelectCols = `id, org_id, name, email, phone, stage_id, source, status, external_lead_id, metadata, created_at, updated_at`

const leadInsert = `INSERT INTO leads (id, org_id, name, email, phone, stage_id, source, status, external_lead_id, metadata, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

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

func leadArgs(lead *store.LeadData) []any {
	return []any{
		lead.ID, lead.OrgID, lead.Name, nilStr(lead.Email), nilStr(lead.Phone), nilUUID(lead.StageID),
		lead.Source, lead.Status, nilStr(lead.ExternalLeadID), jsonOrEmpty(lead.Metadata), lead.CreatedAt,
	}
}

// InsertIfAbsent relies on the (org_id, external_lead_id) unique index: a conflicting
// row makes the insert a no-op and RowsAffected reports zero.
func (s *PGLeadStore) InsertIfAbsent(ctx context.Context, lead *store.LeadData) (bool, error) {
	if err := store.RequireOrg(lead.OrgID); err != nil {
		return false, err
	}
	if lead.ExternalLeadID == "" {
		return false, fmt.Errorf("external lead id is required")
	}
	prepareLead(lead)
	res, err := s.db.ExecContext(ctx,
		leadInsert+` ON CONFLICT (org_id, external_lead_id) WHERE external_lead_id IS NOT NULL DO NOTHING`,
		leadArgs(lead)...)
	if err != nil {
		return false, fmt.Errorf("insert lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PGLeadStore) Create(ctx context.Context, lead *store.LeadData) error {
	if err := store.RequireOrg(lead.OrgID); err != nil {
		return err
	}
	prepareLead(lead)
	if _, err := s.db.ExecContext(ctx, leadInsert, leadArgs(lead)...); err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *PGLeadStore) List(ctx context.Context, orgID uuid.UUID, opts store.LeadListOpts) ([]store.LeadData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	where := []string{"org_id = $1"}
	args := []any{orgID}
	if opts.StageID != nil {
		args = append(args, *opts.StageID)
		where = append(where, fmt.Sprintf("stage_id = $%d", len(args)))
	}
	if opts.Source != "" {
		args = append(args, opts.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, max(opts.Offset, 0))
	q := fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		leadSelectCols, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.LeadData
	for rows.Next() {
		var l store.LeadData
		var email, phone, extID *string
		var stageID uuid.NullUUID
		var meta []byte
		if err := rows.Scan(&l.ID, &l.OrgID, &l.Name, &email, &phone, &stageID, &l.Source, &l.Status,
			&extID, &meta, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.Email = derefStr(email)
		l.Phone = derefStr(phone)
		l.ExternalLeadID = derefStr(extID)
		if stageID.Valid {
			id := stageID.UUID
			l.StageID = &id
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &l.Metadata)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

// MoveStage only accepts a stage owned by the same organization; a foreign or
// unknown stage leaves the lead untouched and reports ErrNotFound.
func (s *PGLeadStore) MoveStage(ctx context.Context, orgID, leadID uuid.UUID, stageID *uuid.UUID) error {
	if err := store.RequireOrg(orgID); err != nil {
		return err
	}
	var res sql.Result
	var err error
	if stageID == nil {
		res, err = s.db.ExecContext(ctx,
			`UPDATE leads SET stage_id = NULL, updated_at = $1 WHERE id = $2 AND org_id = $3`,
			time.Now(), leadID, orgID)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE leads SET stage_id = $1, updated_at = $2
			 WHERE id = $3 AND org_id = $4
			   AND EXISTS (SELECT 1 FROM stages WHERE id = $1 AND org_id = $4)`,
			*stageID, time.Now(), leadID, orgID)
	}
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *PGLeadStore) ListStages(ctx context.Context, orgID uuid.UUID) ([]store.StageData, error) {
	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, name, position, created_at, updated_at FROM stages
		 WHERE org_id = $1 ORDER BY position, created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.StageData
	for rows.Next() {
		var st store.StageData
		if err := rows.Scan(&st.ID, &st.OrgID, &st.Name, &st.Position, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

func (s *PGLeadStore) CreateStage(ctx context.Context, stage *store.StageData) error {
	if err := store.RequireOrg(stage.OrgID); err != nil {
		return err
	}
	if stage.ID == uuid.Nil {
		stage.ID = store.GenNewID()
	}
	now := time.Now()
	stage.CreatedAt = now
	stage.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stages (id, org_id, name, position, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5)`,
		stage.ID, stage.OrgID, stage.Name, stage.Position, now)
	return err
}
