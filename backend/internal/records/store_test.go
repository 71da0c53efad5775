package records

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"persinteret/backend/internal/person"
	apperrors "persinteret/backend/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(Options{Path: filepath.Join(t.TempDir(), "records.db")}, zap.NewNop())
	require.NoError(t, err)

	store := NewStore(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insert(t *testing.T, s *Store, name, status string, dob time.Time) int64 {
	t.Helper()
	ctx := context.Background()

	id, err := s.Allocate(ctx)
	require.NoError(t, err)

	p := person.Person{Name: name, Status: status, DateOfBirth: dob}.WithID(id)
	require.NoError(t, s.Insert(ctx, p.ToRow()))
	return id
}

func TestAllocate_StartsAtZero(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
}

func TestAllocate_NeverReusesDeletedIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := insert(t, s, "Alice", person.StatusFree, day(1980, 1, 1))
	second := insert(t, s, "Bob", person.StatusFree, day(1981, 1, 1))
	require.NoError(t, s.Delete(ctx, second))

	third := insert(t, s, "Carol", person.StatusFree, day(1982, 1, 1))

	assert.Equal(t, int64(0), first)
	assert.Equal(t, int64(1), second)
	assert.Equal(t, int64(2), third)
}

func TestAllocate_FollowsExternallyInsertedMax(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := person.Person{Name: "Imported", Status: person.StatusFree, DateOfBirth: day(1970, 1, 1)}.WithID(41)
	require.NoError(t, s.Insert(ctx, p.ToRow()))

	id, err := s.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestAllocate_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 16
	const perWorker = 10

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := s.Allocate(ctx)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				assert.False(t, seen[id], "identity %d handed out twice", id)
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestInsert_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert(t, s, "Alice", person.StatusFree, day(1980, 1, 1))

	id, err := s.Allocate(ctx)
	require.NoError(t, err)
	dup := person.Person{Name: "Alice", Status: person.StatusMissing, DateOfBirth: day(1990, 1, 1)}.WithID(id)

	err = s.Insert(ctx, dup.ToRow())
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeDuplicateName))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpdateByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := insert(t, s, "Alice", person.StatusFree, day(1980, 1, 1))
	code := "Mockingbird"

	err := s.UpdateByID(ctx, id, person.Fields{
		Name:        "Alicia",
		CodeName:    &code,
		Status:      person.StatusDeceased,
		DateOfBirth: person.ToEpochMillis(day(1979, 12, 31)),
	})
	require.NoError(t, err)

	row, found, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Alicia", row.Name)
	require.NotNil(t, row.CodeName)
	assert.Equal(t, code, *row.CodeName)
	assert.Equal(t, person.StatusDeceased, row.Status)

	_, found, err = s.FindByName(ctx, "Alice")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateByID_Missing(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateByID(context.Background(), 99, person.Fields{Name: "Ghost", Status: person.StatusFree})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestUpdateByID_NameTaken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert(t, s, "Alice", person.StatusFree, day(1980, 1, 1))
	bob := insert(t, s, "Bob", person.StatusFree, day(1980, 1, 1))

	err := s.UpdateByID(ctx, bob, person.Fields{Name: "Alice", Status: person.StatusFree})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeDuplicateName))
}

func TestFindByNamePrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "Albert", "Bob", "ALAN", "Zoe", "Al_x"} {
		insert(t, s, name, person.StatusFree, day(1980, 1, 1))
	}

	rows, err := s.FindByNamePrefix(ctx, "al", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"ALAN", "Al_x", "Albert", "alice"}, names(rows))

	rows, err = s.FindByNamePrefix(ctx, "al_", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Al_x"}, names(rows), "underscore is matched literally")

	rows, err = s.FindByNamePrefix(ctx, "", 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestMaxIDAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.MaxID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	insert(t, s, "A", person.StatusFree, day(1980, 1, 1))
	insert(t, s, "B", person.StatusFree, day(1980, 1, 1))

	max, ok, err := s.MaxID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), max)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDeleteAll_KeepsSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert(t, s, "A", person.StatusFree, day(1980, 1, 1))
	insert(t, s, "B", person.StatusFree, day(1980, 1, 1))
	require.NoError(t, s.DeleteAll(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	id, err := s.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestDelete_Missing(t *testing.T) {
	s := newTestStore(t)

	err := s.Delete(context.Background(), 5)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestCanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Count(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}

func names(rows []person.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Name)
	}
	return out
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
