package store

// Trigger names are identical in both dialects so the immutability and
// freeze probes can share one expectation.
const (
	triggerNoUpdate = "go_live_decision_log_no_update"
	triggerNoDelete = "go_live_decision_log_no_delete"
	triggerFreeze   = "go_live_decision_log_freeze"
)

type dialect struct {
	name         string
	migrations   []string
	lockLog      string
	selectFreeze string
	selectHead   string
	insert       string
	selectAll    string
	updateFreeze string
	listTriggers string
}

var sqliteDialect = dialect{
	name: "sqlite",
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS go_live_decision_log (
			seq INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			decision_hash TEXT NOT NULL,
			manifest_seal TEXT NOT NULL DEFAULT '',
			bundle_digest TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL,
			prev_hash TEXT NOT NULL,
			record_hash TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS go_live_freeze (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			active INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL DEFAULT ''
		)`,
		`INSERT OR IGNORE INTO go_live_freeze (id, active) VALUES (1, 0)`,
		`CREATE TRIGGER IF NOT EXISTS go_live_decision_log_no_update
		BEFORE UPDATE ON go_live_decision_log
		BEGIN
			SELECT RAISE(ABORT, 'go_live_decision_log is append-only');
		END`,
		`CREATE TRIGGER IF NOT EXISTS go_live_decision_log_no_delete
		BEFORE DELETE ON go_live_decision_log
		BEGIN
			SELECT RAISE(ABORT, 'go_live_decision_log is append-only');
		END`,
		`CREATE TRIGGER IF NOT EXISTS go_live_decision_log_freeze
		BEFORE INSERT ON go_live_decision_log
		WHEN (SELECT active FROM go_live_freeze WHERE id = 1) = 1
		BEGIN
			SELECT RAISE(ABORT, 'go_live_decision_log is frozen');
		END`,
	},
	selectFreeze: `SELECT active FROM go_live_freeze WHERE id = 1`,
	selectHead:   `SELECT seq, record_hash FROM go_live_decision_log ORDER BY seq DESC LIMIT 1`,
	insert: `INSERT INTO go_live_decision_log
		(seq, id, created_at, decision_hash, manifest_seal, bundle_digest, result, prev_hash, record_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	selectAll: `SELECT seq, id, created_at, decision_hash, manifest_seal, bundle_digest, result, prev_hash, record_hash
		FROM go_live_decision_log ORDER BY seq`,
	updateFreeze: `UPDATE go_live_freeze SET active = ?, updated_at = ? WHERE id = 1`,
	listTriggers: `SELECT name FROM sqlite_master WHERE type = 'trigger' AND tbl_name = ?`,
}

var postgresDialect = dialect{
	name: "postgres",
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS go_live_decision_log (
			seq BIGINT PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			decision_hash TEXT NOT NULL,
			manifest_seal TEXT NOT NULL DEFAULT '',
			bundle_digest TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL,
			prev_hash TEXT NOT NULL,
			record_hash TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS go_live_freeze (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			active BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TEXT NOT NULL DEFAULT ''
		)`,
		`INSERT INTO go_live_freeze (id, active) VALUES (1, FALSE) ON CONFLICT (id) DO NOTHING`,
		`CREATE OR REPLACE FUNCTION go_live_decision_log_append_only() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'go_live_decision_log is append-only';
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS go_live_decision_log_no_update ON go_live_decision_log`,
		`CREATE TRIGGER go_live_decision_log_no_update
		BEFORE UPDATE ON go_live_decision_log
		FOR EACH ROW EXECUTE FUNCTION go_live_decision_log_append_only()`,
		`DROP TRIGGER IF EXISTS go_live_decision_log_no_delete ON go_live_decision_log`,
		`CREATE TRIGGER go_live_decision_log_no_delete
		BEFORE DELETE ON go_live_decision_log
		FOR EACH ROW EXECUTE FUNCTION go_live_decision_log_append_only()`,
		`CREATE OR REPLACE FUNCTION go_live_decision_log_freeze_guard() RETURNS trigger AS $$
		BEGIN
			IF (SELECT active FROM go_live_freeze WHERE id = 1) THEN
				RAISE EXCEPTION 'go_live_decision_log is frozen';
			END IF;
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS go_live_decision_log_freeze ON go_live_decision_log`,
		`CREATE TRIGGER go_live_decision_log_freeze
		BEFORE INSERT ON go_live_decision_log
		FOR EACH ROW EXECUTE FUNCTION go_live_decision_log_freeze_guard()`,
	},
	lockLog:      `LOCK TABLE go_live_decision_log IN SHARE ROW EXCLUSIVE MODE`,
	selectFreeze: `SELECT active FROM go_live_freeze WHERE id = 1`,
	selectHead:   `SELECT seq, record_hash FROM go_live_decision_log ORDER BY seq DESC LIMIT 1`,
	insert: `INSERT INTO go_live_decision_log
		(seq, id, created_at, decision_hash, manifest_seal, bundle_digest, result, prev_hash, record_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	selectAll: `SELECT seq, id, created_at, decision_hash, manifest_seal, bundle_digest, result, prev_hash, record_hash
		FROM go_live_decision_log ORDER BY seq`,
	updateFreeze: `UPDATE go_live_freeze SET active = $1, updated_at = $2 WHERE id = 1`,
	listTriggers: `SELECT t.tgname FROM pg_trigger t JOIN pg_class c ON c.oid = t.tgrelid
		WHERE c.relname = $1 AND NOT t.tgisinternal`,
}
