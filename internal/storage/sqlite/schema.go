package sqlite

const schema = `
-- Work items table
CREATE TABLE IF NOT EXISTS work_items (
    id TEXT PRIMARY KEY,
    parent_id TEXT REFERENCES work_items(id) ON DELETE CASCADE,
    title TEXT NOT NULL CHECK(length(title) > 0),
    description TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '' CHECK(length(summary) <= 500),
    role TEXT NOT NULL DEFAULT 'queue',
    previous_role TEXT,
    status_label TEXT,
    priority TEXT NOT NULL DEFAULT 'medium',
    complexity INTEGER NOT NULL DEFAULT 5 CHECK(complexity >= 1 AND complexity <= 10),
    requires_verification INTEGER NOT NULL DEFAULT 0,
    depth INTEGER NOT NULL DEFAULT 0 CHECK(depth >= 0 AND depth <= 3),
    metadata TEXT,
    tags TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    modified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    -- previous_role carries meaning only while blocked
    CHECK (previous_role IS NULL OR role = 'blocked')
);

CREATE INDEX IF NOT EXISTS idx_work_items_role ON work_items(role);
CREATE INDEX IF NOT EXISTS idx_work_items_parent ON work_items(parent_id);
CREATE INDEX IF NOT EXISTS idx_work_items_priority ON work_items(priority);
CREATE INDEX IF NOT EXISTS idx_work_items_created_at ON work_items(created_at);

-- Dependencies table (typed edges, persisted literally; BLOCKS and
-- IS_BLOCKED_BY are normalized at query time)
CREATE TABLE IF NOT EXISTS dependencies (
    id TEXT PRIMARY KEY,
    from_item_id TEXT NOT NULL REFERENCES work_items(id) ON DELETE CASCADE,
    to_item_id TEXT NOT NULL REFERENCES work_items(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    unblock_at TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(from_item_id, to_item_id, type),
    CHECK(from_item_id <> to_item_id)
);

CREATE INDEX IF NOT EXISTS idx_dependencies_from ON dependencies(from_item_id);
CREATE INDEX IF NOT EXISTS idx_dependencies_to ON dependencies(to_item_id);
CREATE INDEX IF NOT EXISTS idx_dependencies_to_type ON dependencies(to_item_id, type);

-- Notes table (gate-check accountability artifacts)
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL REFERENCES work_items(id) ON DELETE CASCADE,
    key TEXT NOT NULL CHECK(length(key) > 0 AND length(key) <= 200),
    role TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    modified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(item_id, key)
);

CREATE INDEX IF NOT EXISTS idx_notes_item ON notes(item_id);

-- Role transitions table (append-only audit trail)
CREATE TABLE IF NOT EXISTS role_transitions (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL REFERENCES work_items(id) ON DELETE CASCADE,
    from_role TEXT NOT NULL,
    to_role TEXT NOT NULL,
    from_status_label TEXT,
    to_status_label TEXT,
    "trigger" TEXT NOT NULL,
    summary TEXT,
    transitioned_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transitions_item ON role_transitions(item_id);
CREATE INDEX IF NOT EXISTS idx_transitions_at ON role_transitions(transitioned_at);

-- Metadata table (internal state like schema version and instance identity)
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Ready items view: ladder items below terminal whose incoming blockers
-- have all reached their effective unblock threshold. Blocked-role items
-- never appear. A blocker that is itself blocked ranks below every
-- threshold, so it keeps its targets gated.
CREATE VIEW IF NOT EXISTS ready_items AS
SELECT i.*
FROM work_items i
WHERE i.role IN ('queue', 'work', 'review')
  AND NOT EXISTS (
    SELECT 1
    FROM dependencies d
    JOIN work_items b
      ON b.id = CASE WHEN d.type = 'IS_BLOCKED_BY' THEN d.to_item_id ELSE d.from_item_id END
    WHERE ((d.type = 'BLOCKS' AND d.to_item_id = i.id)
        OR (d.type = 'IS_BLOCKED_BY' AND d.from_item_id = i.id))
      AND (CASE b.role
             WHEN 'queue' THEN 0
             WHEN 'work' THEN 1
             WHEN 'review' THEN 2
             WHEN 'terminal' THEN 3
             ELSE -1 END)
        < (CASE COALESCE(d.unblock_at, 'terminal')
             WHEN 'queue' THEN 0
             WHEN 'work' THEN 1
             WHEN 'review' THEN 2
             ELSE 3 END)
  );
`
