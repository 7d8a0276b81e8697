package results

const schema = `
CREATE TABLE IF NOT EXISTS records (
    run_id TEXT NOT NULL,
    task_id TEXT NOT NULL,
    image_tag TEXT,
    repo_dir TEXT,
    build_ok BOOLEAN NOT NULL DEFAULT FALSE,
    agent_patch_ok BOOLEAN NOT NULL DEFAULT FALSE,
    test_patch_ok BOOLEAN NOT NULL DEFAULT FALSE,
    test_ok BOOLEAN NOT NULL DEFAULT FALSE,
    test_exit_code INTEGER,
    skipped BOOLEAN NOT NULL DEFAULT FALSE,
    skip_reason TEXT,
    notes TEXT,
    logs TEXT,
    recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (run_id, task_id)
);

CREATE INDEX IF NOT EXISTS idx_records_task ON records(task_id);
`
