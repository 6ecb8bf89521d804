package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/alsijil/core"
	"github.com/trezcool/alsijil/core/datacheck"
)

type resultRow struct {
	datacheck.Result
}

type resultRepository struct {
	db *DB
}

var _ datacheck.ResultRepository = (*resultRepository)(nil) // interface compliance check

func NewResultRepository(db *DB) *resultRepository {
	return &resultRepository{db: db}
}

func (repo *resultRepository) query(match func(datacheck.Result) bool) []datacheck.Result {
	results := make([]datacheck.Result, 0, len(repo.db.result))
	for _, row := range repo.db.result {
		if match(row.Result) {
			results = append(results, row.Result)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID < results[j].ID
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results
}

func (repo *resultRepository) GetOrCreateResult(_ context.Context, res datacheck.Result, _ ...core.DBExecutor) (datacheck.Result, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, row := range repo.db.result {
		if row.Check == res.Check && row.ContentType == res.ContentType && row.ObjectID == res.ObjectID {
			return row.Result, false, nil
		}
	}

	res.ID = uuid.New().String()
	res.CreatedAt = time.Now().UTC()
	repo.db.result[res.ID] = &resultRow{Result: res}
	return res, true, nil
}

func (repo *resultRepository) GetResult(_ context.Context, id string, _ ...core.DBExecutor) (datacheck.Result, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.result[id]; ok {
		return row.Result, nil
	}
	return datacheck.Result{}, datacheck.ErrNotFound
}

func (repo *resultRepository) QueryResults(_ context.Context, filter *datacheck.ResultFilter, _ ...core.DBExecutor) ([]datacheck.Result, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.query(func(res datacheck.Result) bool {
		if filter == nil {
			return true
		}
		if filter.Check != "" && res.Check != filter.Check {
			return false
		}
		if filter.ContentType != "" && res.ContentType != filter.ContentType {
			return false
		}
		if filter.ObjectID != "" && res.ObjectID != filter.ObjectID {
			return false
		}
		if filter.Solved != nil && res.Solved != *filter.Solved {
			return false
		}
		if filter.Sent != nil && res.Sent != *filter.Sent {
			return false
		}
		return true
	}), nil
}

func (repo *resultRepository) SaveResult(_ context.Context, res datacheck.Result, _ ...core.DBExecutor) (datacheck.Result, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.result[res.ID]
	if !ok {
		return datacheck.Result{}, datacheck.ErrNotFound
	}
	res.CreatedAt = orig.CreatedAt
	repo.db.result[res.ID] = &resultRow{Result: res}
	return res, nil
}

func (repo *resultRepository) DeleteResult(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.result, id)
	return nil
}

func (repo *resultRepository) MarkResultsSent(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		if row, ok := repo.db.result[id]; ok {
			row.Sent = true
		}
	}
	return nil
}
