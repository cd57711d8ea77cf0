package sqlite

// The decision log is append-only by construction: rounds and decisions are
// only ever inserted, a whole round per transaction, and nothing updates or
// deletes them. Settlement replays by reading this schema alone.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS rounds (
	round_id   TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	ticker     TEXT NOT NULL,
	window     TEXT NOT NULL,
	yes_cents  INTEGER NOT NULL,
	sampled_at DATETIME NOT NULL,
	logged_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rounds_run ON rounds(run_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_rounds_run_market_window ON rounds(run_id, ticker, window);

CREATE TABLE IF NOT EXISTS decisions (
	round_id    TEXT NOT NULL REFERENCES rounds(round_id),
	ord         INTEGER NOT NULL,
	persona     TEXT NOT NULL,
	action      TEXT NOT NULL,
	stake       REAL NOT NULL DEFAULT 0,
	rationale   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	fail_reason TEXT NOT NULL DEFAULT '',
	decided_at  DATETIME NOT NULL,
	PRIMARY KEY (round_id, persona)
);

CREATE TABLE IF NOT EXISTS verdicts (
	ticker          TEXT PRIMARY KEY,
	knows_outcome   BOOLEAN NOT NULL,
	confidence      TEXT NOT NULL,
	guessed_outcome TEXT NOT NULL DEFAULT '',
	rationale       TEXT NOT NULL DEFAULT '',
	recommendation  TEXT NOT NULL,
	checked_at      DATETIME NOT NULL
);
`
