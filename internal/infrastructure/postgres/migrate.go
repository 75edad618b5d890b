package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS warehouses (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	prefix     TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lot_codes (
	code          TEXT PRIMARY KEY,
	scope         TEXT NOT NULL,
	warehouse_id  TEXT NOT NULL,
	customer_name TEXT NOT NULL,
	plate         TEXT NOT NULL,
	op_date       DATE NOT NULL,
	sequence      INTEGER NOT NULL CHECK (sequence > 0),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (scope, sequence)
);
CREATE INDEX IF NOT EXISTS idx_lot_codes_code_pattern ON lot_codes (code text_pattern_ops);

CREATE TABLE IF NOT EXISTS lot_balances (
	code          TEXT NOT NULL,
	warehouse_id  TEXT NOT NULL,
	pallets       BIGINT NOT NULL DEFAULT 0 CHECK (pallets >= 0),
	packages      BIGINT NOT NULL DEFAULT 0 CHECK (packages >= 0),
	weight        NUMERIC(18,4) NOT NULL DEFAULT 0,
	volume        NUMERIC(18,4) NOT NULL DEFAULT 0,
	customer_name TEXT NOT NULL DEFAULT '',
	customs       TEXT NOT NULL DEFAULT '',
	export_mode   TEXT NOT NULL DEFAULT '',
	service_staff TEXT NOT NULL DEFAULT '',
	version       BIGINT NOT NULL DEFAULT 1,
	last_updated  TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at    TIMESTAMPTZ,
	PRIMARY KEY (code, warehouse_id)
);

CREATE TABLE IF NOT EXISTS lot_movements (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL CHECK (kind IN ('INBOUND', 'OUTBOUND', 'RECEIVE')),
	code          TEXT NOT NULL,
	warehouse_id  TEXT NOT NULL,
	pallets       BIGINT NOT NULL CHECK (pallets >= 0),
	packages      BIGINT NOT NULL CHECK (packages >= 0),
	weight        NUMERIC(18,4) NOT NULL DEFAULT 0,
	volume        NUMERIC(18,4) NOT NULL DEFAULT 0,
	counterpart   TEXT NOT NULL DEFAULT '',
	transit_id    TEXT NOT NULL DEFAULT '',
	customer_name TEXT NOT NULL DEFAULT '',
	customs       TEXT NOT NULL DEFAULT '',
	export_mode   TEXT NOT NULL DEFAULT '',
	service_staff TEXT NOT NULL DEFAULT '',
	occurred_at   TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_by    TEXT NOT NULL DEFAULT '',
	deleted_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_lot_movements_code ON lot_movements (code, occurred_at) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS lot_transits (
	id                       TEXT PRIMARY KEY,
	code                     TEXT NOT NULL,
	source_warehouse_id      TEXT NOT NULL,
	destination_warehouse_id TEXT NOT NULL,
	pallets                  BIGINT NOT NULL,
	packages                 BIGINT NOT NULL,
	weight                   NUMERIC(18,4) NOT NULL DEFAULT 0,
	volume                   NUMERIC(18,4) NOT NULL DEFAULT 0,
	status                   TEXT NOT NULL CHECK (status IN ('in_transit', 'received', 'completed', 'cancelled')),
	customer_name            TEXT NOT NULL DEFAULT '',
	customs                  TEXT NOT NULL DEFAULT '',
	export_mode              TEXT NOT NULL DEFAULT '',
	service_staff            TEXT NOT NULL DEFAULT '',
	departed_at              TIMESTAMPTZ NOT NULL,
	received_at              TIMESTAMPTZ,
	completed_at             TIMESTAMPTZ,
	cancelled_at             TIMESTAMPTZ,
	created_by               TEXT NOT NULL DEFAULT '',
	CHECK (source_warehouse_id <> destination_warehouse_id)
);
CREATE INDEX IF NOT EXISTS idx_lot_transits_code ON lot_transits (code);
`

// Migrate crea las tablas del libro si no existen. Es idempotente.
func Migrate(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
