package pipeline_test

import (
	"context"
	"sort"
	"sync"

	"github.com/ajitpratap0/movieport/pkg/dataset"
	"github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/models"
	"github.com/ajitpratap0/movieport/pkg/testutil"
)

// memStore mimics the relational store: ids are assigned from a sequence
// that never goes backwards except when realigned after explicit ids
type memStore struct {
	mu     sync.Mutex
	rows   map[int64]models.Movie
	nextID int64
	// dropOnWrite silently loses that many records per WriteAll
	dropOnWrite int
	failWrite   error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]models.Movie), nextID: 1}
}

func (s *memStore) EnsureSchema(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) > 0 {
		return nil
	}
	baseline, err := dataset.Baseline()
	if err != nil {
		return err
	}
	for _, m := range baseline {
		s.rows[*m.ID] = m
	}
	s.realign()
	return nil
}

func (s *memStore) realign() {
	for id := range s.rows {
		if id >= s.nextID {
			s.nextID = id + 1
		}
	}
}

func (s *memStore) ReadAll(context.Context) ([]models.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Movie, 0, len(s.rows))
	for _, m := range s.rows {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].ID < *out[j].ID })
	return out, nil
}

func (s *memStore) WriteAll(_ context.Context, movies []models.Movie) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return 0, s.failWrite
	}
	if err := models.ValidateAll(movies); err != nil {
		return 0, err
	}
	written := 0
	for i, m := range movies {
		if i < s.dropOnWrite {
			continue
		}
		if m.HasID() {
			s.rows[*m.ID] = m
		} else {
			m.ID = models.Int64(s.nextID)
			s.nextID++
			s.rows[*m.ID] = m
		}
		written++
	}
	s.realign()
	return written, nil
}

func (s *memStore) ResetToDefault(_ context.Context, n int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) <= n {
		return 0, nil
	}
	var deleted int64
	for id := range s.rows {
		if id > int64(n) {
			delete(s.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memStore) ClearAll(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.rows))
	s.rows = make(map[int64]models.Movie)
	return n, nil
}

func (s *memStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

// tableMetadataKey is where memTable keeps its metadata in the warehouse bucket
const tableMetadataKey = "movies_db.db/movies/metadata/v1.metadata.json"

// memTable is an append-only table whose snapshots are whole batches. Like a
// catalog backed table, its metadata lives in the warehouse bucket and cannot
// be reset once that file is gone.
type memTable struct {
	mu        sync.Mutex
	warehouse *testutil.FakeS3
	bucket    string
	snapshots [][]models.Movie
	resets    int
	exists    bool
}

func newMemTable(warehouse *testutil.FakeS3, bucket string) *memTable {
	return &memTable{warehouse: warehouse, bucket: bucket}
}

func (t *memTable) Write(_ context.Context, movies []models.Movie) (int, error) {
	if len(movies) == 0 {
		return 0, nil
	}
	if err := models.ValidateAll(movies); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exists = true
	t.warehouse.Seed(t.bucket, map[string]string{tableMetadataKey: "{}"})
	t.snapshots = append(t.snapshots, append([]models.Movie(nil), movies...))
	return len(movies), nil
}

func (t *memTable) Read(context.Context) ([]models.Movie, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.exists {
		return nil, errors.New(errors.ErrorTypeCatalog, "table does not exist")
	}
	var out []models.Movie
	for _, s := range t.snapshots {
		out = append(out, s...)
	}
	return out, nil
}

func (t *memTable) Reset(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resets++
	if t.exists {
		if _, ok := t.warehouse.Object(t.bucket, tableMetadataKey); !ok {
			return errors.New(errors.ErrorTypeCatalog, "table metadata is missing from the warehouse")
		}
	}
	t.exists = false
	t.snapshots = nil
	return nil
}

func (t *memTable) rows() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.snapshots {
		n += len(s)
	}
	return n
}
