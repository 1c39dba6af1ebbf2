package journal

// Schema creates the tables of a training journal
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started DATETIME NOT NULL,
	finished DATETIME,
	workers INTEGER NOT NULL,
	t_max INTEGER NOT NULL,
	rounds INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	config TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rounds (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	round INTEGER NOT NULL,
	contributors INTEGER NOT NULL,
	steps INTEGER NOT NULL,
	loss REAL NOT NULL,
	finished INTEGER NOT NULL,
	PRIMARY KEY (run_id, round)
);

CREATE TABLE IF NOT EXISTS wealth (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	worker INTEGER NOT NULL,
	wealth REAL NOT NULL,
	PRIMARY KEY (run_id, worker)
);
`
