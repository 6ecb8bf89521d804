package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/alsijil/core"
	"github.com/trezcool/alsijil/core/datacheck"
)

const resultColumns = `t.id, t."check", t.content_type, t.object_id, t.solved, t.sent, t.created_at`

type (
	resultRow struct {
		ID          string    `db:"id"`
		Check       string    `db:"check"`
		ContentType string    `db:"content_type"`
		ObjectID    string    `db:"object_id"`
		Solved      bool      `db:"solved"`
		Sent        bool      `db:"sent"`
		CreatedAt   time.Time `db:"created_at"`
	}

	resultRepository struct {
		exec core.DBExecutor
	}
)

var _ datacheck.ResultRepository = (*resultRepository)(nil) // interface compliance check

func NewResultRepository(exec core.DBExecutor) *resultRepository {
	return &resultRepository{exec: exec}
}

func (repo resultRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo resultRepository) rowToResult(row resultRow) datacheck.Result {
	return datacheck.Result(row)
}

func (repo resultRepository) queryResults(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) ([]datacheck.Result, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var resRows []resultRow
	if err = sqlx.StructScan(rows, &resRows); err != nil {
		return nil, err
	}

	results := make([]datacheck.Result, 0, len(resRows))
	for _, row := range resRows {
		results = append(results, repo.rowToResult(row))
	}
	return results, nil
}

// GetOrCreateResult upserts a result row by its (check, content type,
// object id) key. A concurrent insert loses on the unique index and the
// winning row is returned, so check runs stay idempotent.
func (repo resultRepository) GetOrCreateResult(ctx context.Context, res datacheck.Result, exec ...core.DBExecutor) (datacheck.Result, bool, error) {
	exe := repo.getExec(exec)

	res.ID = uuid.New().String()
	res.CreatedAt = time.Now().UTC()

	sqlRes, err := exe.ExecContext(ctx, `
		INSERT INTO data_check_result (id, "check", content_type, object_id, solved, sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ("check", content_type, object_id) DO NOTHING`,
		res.ID, res.Check, res.ContentType, res.ObjectID, res.Solved, res.Sent, res.CreatedAt,
	)
	if err != nil {
		return datacheck.Result{}, false, errors.Wrap(err, "inserting check result")
	}

	created := false
	if n, err := sqlRes.RowsAffected(); err == nil && n > 0 {
		created = true
	}

	results, err := repo.queryResults(ctx, exe, `
		SELECT `+resultColumns+` FROM data_check_result t
		WHERE t."check" = $1 AND t.content_type = $2 AND t.object_id = $3`,
		res.Check, res.ContentType, res.ObjectID)
	if err != nil {
		return datacheck.Result{}, false, errors.Wrap(err, "finding check result")
	}
	if len(results) == 0 {
		return datacheck.Result{}, false, datacheck.ErrNotFound
	}
	return results[0], created, nil
}

func (repo resultRepository) GetResult(ctx context.Context, id string, exec ...core.DBExecutor) (datacheck.Result, error) {
	results, err := repo.queryResults(ctx, repo.getExec(exec), `
		SELECT `+resultColumns+` FROM data_check_result t WHERE t.id = $1`, id)
	if err != nil {
		return datacheck.Result{}, errors.Wrap(err, "finding check result")
	}
	if len(results) == 0 {
		return datacheck.Result{}, datacheck.ErrNotFound
	}
	return results[0], nil
}

func (repo resultRepository) QueryResults(ctx context.Context, filter *datacheck.ResultFilter, exec ...core.DBExecutor) ([]datacheck.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM data_check_result t`
	var (
		clauses []string
		args    []interface{}
	)
	if filter != nil {
		if filter.Check != "" {
			args = append(args, filter.Check)
			clauses = append(clauses, fmt.Sprintf(`t."check" = $%d`, len(args)))
		}
		if filter.ContentType != "" {
			args = append(args, filter.ContentType)
			clauses = append(clauses, fmt.Sprintf(`t.content_type = $%d`, len(args)))
		}
		if filter.ObjectID != "" {
			args = append(args, filter.ObjectID)
			clauses = append(clauses, fmt.Sprintf(`t.object_id = $%d`, len(args)))
		}
		if filter.Solved != nil {
			args = append(args, *filter.Solved)
			clauses = append(clauses, fmt.Sprintf(`t.solved = $%d`, len(args)))
		}
		if filter.Sent != nil {
			args = append(args, *filter.Sent)
			clauses = append(clauses, fmt.Sprintf(`t.sent = $%d`, len(args)))
		}
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY t.created_at, t.id`

	results, err := repo.queryResults(ctx, repo.getExec(exec), query, args...)
	return results, errors.Wrap(err, "querying check results")
}

func (repo resultRepository) SaveResult(ctx context.Context, res datacheck.Result, exec ...core.DBExecutor) (datacheck.Result, error) {
	sqlRes, err := repo.getExec(exec).ExecContext(ctx, `
		UPDATE data_check_result SET solved = $2, sent = $3 WHERE id = $1`,
		res.ID, res.Solved, res.Sent,
	)
	if err != nil {
		return datacheck.Result{}, errors.Wrap(err, "updating check result")
	}
	if n, err := sqlRes.RowsAffected(); err == nil && n == 0 {
		return datacheck.Result{}, datacheck.ErrNotFound
	}
	return res, nil
}

func (repo resultRepository) DeleteResult(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM data_check_result WHERE id = $1`, id)
	return errors.Wrap(err, "deleting check result")
}

func (repo resultRepository) MarkResultsSent(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.getExec(exec).ExecContext(ctx, `
		UPDATE data_check_result SET sent = true WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "marking check results sent")
}
