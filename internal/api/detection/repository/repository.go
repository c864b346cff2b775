package detectionRepository

import (
	"VSLBackend/internal/entity"
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
	EnsureSchema(ctx context.Context) error
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var db sqlx.ExtContext
	var commitFunc, rollbackFunc func() error

	db = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		db = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Runs:     &runRepository{q: db, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

func (r *repository) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, querySchema)
	return err
}

type Client struct {
	Runs interface {
		CreateRun(ctx context.Context, run entity.DetectionRun) error
		ListRecent(ctx context.Context, limit int) ([]entity.DetectionRun, error)
	}

	Commit   func() error
	Rollback func() error
}

type runRepository struct {
	q   sqlx.ExtContext
	log *logrus.Logger
}
