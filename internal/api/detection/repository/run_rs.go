package detectionRepository

import (
	"VSLBackend/internal/entity"
	contextPkg "VSLBackend/pkg/context"
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type RunDB struct {
	ID             sql.NullString  `db:"id"`
	MediaType      sql.NullString  `db:"media_type"`
	SourceName     sql.NullString  `db:"source_name"`
	Sentence       sql.NullString  `db:"sentence"`
	FPS            sql.NullFloat64 `db:"fps"`
	FrameCount     sql.NullInt64   `db:"frame_count"`
	DetectionCount sql.NullInt64   `db:"detection_count"`
	ArtifactPath   sql.NullString  `db:"artifact_path"`
	CreatedAt      sql.NullTime    `db:"created_at"`
}

func (r *runRepository) CreateRun(c context.Context, run entity.DetectionRun) error {
	requestID := contextPkg.GetRequestID(c)

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	argsKV := map[string]interface{}{
		"id":              run.ID,
		"media_type":      string(run.MediaType),
		"source_name":     run.SourceName,
		"sentence":        run.Sentence,
		"fps":             run.FPS,
		"frame_count":     run.FrameCount,
		"detection_count": run.DetectionCount,
		"artifact_path":   sql.NullString{String: run.ArtifactPath, Valid: run.ArtifactPath != ""},
		"created_at":      createdAt,
	}

	query, args, err := sqlx.Named(queryCreateRun, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateRun")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"run_id":     run.ID,
			"error":      err.Error(),
		}).Error("Database error when creating detection run")
		return err
	}

	return nil
}

func (r *runRepository) ListRecent(c context.Context, limit int) ([]entity.DetectionRun, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryListRecentRuns, map[string]interface{}{"limit": limit})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListRecent named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	rows, err := r.q.QueryxContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListRecent execution err")
		return nil, err
	}
	defer rows.Close()

	runs := make([]entity.DetectionRun, 0, limit)
	for rows.Next() {
		var row RunDB
		if err := rows.StructScan(&row); err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("ListRecent scan err")
			return nil, err
		}
		runs = append(runs, makeRun(row))
	}

	return runs, rows.Err()
}

func makeRun(row RunDB) entity.DetectionRun {
	return entity.DetectionRun{
		ID:             row.ID.String,
		MediaType:      entity.MediaType(row.MediaType.String),
		SourceName:     row.SourceName.String,
		Sentence:       row.Sentence.String,
		FPS:            row.FPS.Float64,
		FrameCount:     int(row.FrameCount.Int64),
		DetectionCount: int(row.DetectionCount.Int64),
		ArtifactPath:   row.ArtifactPath.String,
		CreatedAt:      row.CreatedAt.Time,
	}
}
