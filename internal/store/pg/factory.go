package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// OpenDB opens a pooled connection through the pgx stdlib driver and pings it.
func OpenDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewStoresFromDB wires every store onto an existing pool.
func NewStoresFromDB(db *sql.DB, encryptionKey string) *store.Stores {
	return &store.Stores{
		Organizations: NewPGOrganizationStore(db, encryptionKey),
		Agents:        NewPGAgentStore(db),
		Leads:         NewPGLeadStore(db),
		Meta:          NewPGMetaStore(db, encryptionKey),
		Close:         db.Close,
	}
}
