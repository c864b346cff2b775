package detectionRepository

const (
	querySchema = `
CREATE TABLE IF NOT EXISTS detection_runs (
    id              VARCHAR(26) PRIMARY KEY,
    media_type      VARCHAR(16) NOT NULL,
    source_name     TEXT NOT NULL,
    sentence        TEXT NOT NULL DEFAULT '',
    fps             DOUBLE PRECISION NOT NULL DEFAULT 0,
    frame_count     INTEGER NOT NULL DEFAULT 0,
    detection_count INTEGER NOT NULL DEFAULT 0,
    artifact_path   TEXT,
    created_at      TIMESTAMPTZ NOT NULL
)`

	queryCreateRun = `
INSERT INTO detection_runs (id, media_type, source_name, sentence, fps, frame_count, detection_count, artifact_path, created_at)
VALUES (:id, :media_type, :source_name, :sentence, :fps, :frame_count, :detection_count, :artifact_path, :created_at)`

	queryListRecentRuns = `
SELECT id, media_type, source_name, sentence, fps, frame_count, detection_count, artifact_path, created_at
FROM detection_runs
ORDER BY created_at DESC
    LIMIT :limit`
)
