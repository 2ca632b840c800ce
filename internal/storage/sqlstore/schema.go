package sqlstore

const currentSchemaVersion = 1

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meta (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
    id TEXT PRIMARY KEY,
    target_type TEXT NOT NULL,
    target_id TEXT NOT NULL DEFAULT '',
    feedback_type TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    review_notes TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at, id);
CREATE INDEX IF NOT EXISTS idx_feedback_status ON feedback(status, created_at, id);
CREATE INDEX IF NOT EXISTS idx_feedback_target ON feedback(target_type, target_id);

CREATE TABLE IF NOT EXISTS coding_rules (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rule_examples (
    id TEXT PRIMARY KEY,
    rule_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    language TEXT NOT NULL,
    snippet TEXT NOT NULL,
    explanation TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rule_examples_rule ON rule_examples(rule_id, created_at, id);

CREATE TABLE IF NOT EXISTS class_templates (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    layer TEXT NOT NULL,
    language TEXT NOT NULL,
    content TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS checklist_items (
    id TEXT PRIMARY KEY,
    checklist TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checklist_items_list ON checklist_items(checklist, position, id);
`

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
const mysqlSchema = `
CREATE TABLE IF NOT EXISTS meta (
    name VARCHAR(64) PRIMARY KEY,
    value VARCHAR(255) NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
    id VARCHAR(64) PRIMARY KEY,
    target_type VARCHAR(32) NOT NULL,
    target_id VARCHAR(64) NOT NULL DEFAULT '',
    feedback_type VARCHAR(16) NOT NULL,
    risk_level VARCHAR(16) NOT NULL,
    payload MEDIUMTEXT NOT NULL,
    status VARCHAR(32) NOT NULL,
    review_notes TEXT,
    created_at VARCHAR(40) NOT NULL,
    updated_at VARCHAR(40) NOT NULL,
    version BIGINT NOT NULL DEFAULT 1,
    INDEX idx_feedback_created (created_at, id),
    INDEX idx_feedback_status (status, created_at, id),
    INDEX idx_feedback_target (target_type, target_id)
);

CREATE TABLE IF NOT EXISTS coding_rules (
    id VARCHAR(64) PRIMARY KEY,
    code VARCHAR(32) NOT NULL,
    name VARCHAR(200) NOT NULL,
    description TEXT NOT NULL,
    severity VARCHAR(16) NOT NULL,
    category VARCHAR(100) NOT NULL DEFAULT '',
    created_at VARCHAR(40) NOT NULL,
    updated_at VARCHAR(40) NOT NULL,
    UNIQUE KEY uq_coding_rules_code (code)
);

CREATE TABLE IF NOT EXISTS rule_examples (
    id VARCHAR(64) PRIMARY KEY,
    rule_id VARCHAR(64) NOT NULL,
    kind VARCHAR(8) NOT NULL,
    language VARCHAR(50) NOT NULL,
    snippet MEDIUMTEXT NOT NULL,
    explanation TEXT NOT NULL,
    created_at VARCHAR(40) NOT NULL,
    updated_at VARCHAR(40) NOT NULL,
    INDEX idx_rule_examples_rule (rule_id, created_at, id)
);

CREATE TABLE IF NOT EXISTS class_templates (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    layer VARCHAR(100) NOT NULL,
    language VARCHAR(50) NOT NULL,
    content MEDIUMTEXT NOT NULL,
    description TEXT NOT NULL,
    created_at VARCHAR(40) NOT NULL,
    updated_at VARCHAR(40) NOT NULL
);

CREATE TABLE IF NOT EXISTS checklist_items (
    id VARCHAR(64) PRIMARY KEY,
    checklist VARCHAR(100) NOT NULL,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL,
    position INT NOT NULL DEFAULT 0,
    created_at VARCHAR(40) NOT NULL,
    updated_at VARCHAR(40) NOT NULL,
    INDEX idx_checklist_items_list (checklist, position, id)
)
`
