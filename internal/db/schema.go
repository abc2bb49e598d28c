package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. The partial unique index on
// transfer_requests is load-bearing: it is what makes "one active transfer
// per family" hold under concurrent inserts.
const schema = `
CREATE TABLE IF NOT EXISTS provinces (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS districts (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    province_id TEXT NOT NULL REFERENCES provinces(id)
);

CREATE TABLE IF NOT EXISTS divisions (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    district_id TEXT NOT NULL REFERENCES districts(id)
);

CREATE TABLE IF NOT EXISTS offices (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    division_id TEXT NOT NULL REFERENCES divisions(id)
);

CREATE TABLE IF NOT EXISTS families (
    id               TEXT PRIMARY KEY,
    office_of_record TEXT NOT NULL REFERENCES offices(id),
    transfer_pending BOOLEAN NOT NULL DEFAULT FALSE,
    transferred      BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transfer_requests (
    id               UUID PRIMARY KEY,
    family_id        TEXT NOT NULL REFERENCES families(id),
    from_office_id   TEXT NOT NULL REFERENCES offices(id),
    to_office_id     TEXT NOT NULL REFERENCES offices(id),
    status           TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'completed', 'cancelled')),
    reason           TEXT NOT NULL,
    notes            TEXT NOT NULL DEFAULT '',
    requested_by     TEXT NOT NULL,
    approved_by      TEXT,
    rejected_by      TEXT,
    completed_by     TEXT,
    request_date     TIMESTAMPTZ NOT NULL,
    approval_date    TIMESTAMPTZ,
    rejection_date   TIMESTAMPTZ,
    completed_date   TIMESTAMPTZ,
    rejection_reason TEXT NOT NULL DEFAULT '',
    completion_notes TEXT NOT NULL DEFAULT '',
    CHECK (from_office_id <> to_office_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS transfer_requests_one_active_per_family
    ON transfer_requests (family_id)
    WHERE status IN ('pending', 'approved');

CREATE INDEX IF NOT EXISTS transfer_requests_from_office_idx
    ON transfer_requests (from_office_id, request_date DESC);

CREATE INDEX IF NOT EXISTS transfer_requests_to_office_idx
    ON transfer_requests (to_office_id, request_date DESC);
`

// Migrate applies the schema. Statements are idempotent so this is safe to
// run on every startup.
func Migrate(conn *sql.DB) error {
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
