package runstore

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    event TEXT NOT NULL,
    branch TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at TIMESTAMP,
    finished_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS environment_results (
    run_id TEXT NOT NULL REFERENCES runs(id),
    environment_id TEXT NOT NULL,
    status TEXT NOT NULL,
    failed_stage TEXT,
    failed_step TEXT,
    started_at TIMESTAMP,
    finished_at TIMESTAMP,
    PRIMARY KEY (run_id, environment_id)
);

CREATE INDEX IF NOT EXISTS idx_environment_results_run_id ON environment_results(run_id);

CREATE TABLE IF NOT EXISTS step_outcomes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    environment_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    stage TEXT NOT NULL,
    step TEXT NOT NULL,
    status TEXT NOT NULL,
    exit_code INTEGER,
    output TEXT,
    duration_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_step_outcomes_run_id ON step_outcomes(run_id);
`
