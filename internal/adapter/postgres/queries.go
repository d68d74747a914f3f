package postgres

const (
	// querySchema creates the key-value table if it is missing.
	querySchema = `
		CREATE TABLE IF NOT EXISTS kv_store (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`

	queryGet = `SELECT value FROM kv_store WHERE key = $1`

	// queryUpsert overwrites any previous value for the key.
	queryUpsert = `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
)
