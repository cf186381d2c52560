package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidsflow/bidsflow/pkg/bids"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "index.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dwiComponent(t *testing.T) bids.Component {
	t.Helper()
	c, err := bids.NewComponent("dwi", "sub-{subject}/dwi/sub-{subject}_acq-{acq}_dir-{dir}_dwi.nii.gz",
		map[string][]string{
			"dir":     {"AP", "PA", "AP", "PA", "AP", "PA", "AP", "PA"},
			"acq":     {"98", "98", "98", "98", "99", "99", "99", "99"},
			"subject": {"01", "01", "02", "02", "01", "01", "02", "02"},
		})
	require.NoError(t, err)
	return c
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	want := dwiComponent(t)

	require.NoError(t, s.Put(ctx, want))

	got, err := s.Get(ctx, "dwi")
	require.NoError(t, err)
	assert.Equal(t, want.Path, got.Path)
	assert.True(t, want.ZipList.Equal(got.ZipList), "got %v", got.ZipList)
}

func TestStore_PutReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, dwiComponent(t)))

	smaller, err := bids.NewComponent("dwi", "other/{subject}", map[string][]string{"subject": {"05"}})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, smaller))

	got, err := s.Get(ctx, "dwi")
	require.NoError(t, err)
	assert.Equal(t, "other/{subject}", got.Path)
	assert.Equal(t, map[string][]string{"subject": {"05"}}, got.ZipList.Map())
}

func TestStore_EmptyComponentKeepsEntities(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	empty, err := bids.NewComponent("t2w", "sub-{subject}_T2w.nii.gz", map[string][]string{"subject": {}})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, empty))

	got, err := s.Get(ctx, "t2w")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, []string{"subject"}, got.ZipList.Entities())
}

func TestStore_NamesDeleteLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	t1w, err := bids.NewComponent("t1w", "sub-{subject}_T1w.nii.gz", map[string][]string{"subject": {"01", "02"}})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, t1w))
	require.NoError(t, s.Put(ctx, dwiComponent(t)))

	names, err := s.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dwi", "t1w"}, names)

	d, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02"}, d.Subjects())

	only, err := s.Load(ctx, "t1w")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1w"}, only.Names())

	require.NoError(t, s.Delete(ctx, "t1w"))
	_, err = s.Get(ctx, "t1w")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Load(ctx, "t1w")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql", DSN: "x"}, nil)
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{}, nil)
	assert.Error(t, err)
}

func TestStore_Rebind(t *testing.T) {
	pg := New(nil, DriverPostgres, nil)
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", pg.rebind("SELECT a FROM t WHERE b = ? AND c = ?"))

	lite := New(nil, DriverSQLite, nil)
	assert.Equal(t, "SELECT a FROM t WHERE b = ?", lite.rebind("SELECT a FROM t WHERE b = ?"))
}

func TestStore_GetQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT path, size, entities FROM components`).
		WithArgs("dwi").
		WillReturnError(errors.New("connection reset"))

	_, err = New(db, DriverSQLite, nil).Get(context.Background(), "dwi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PutRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM entries`).WithArgs("dwi").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM components`).WithArgs("dwi").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO components`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = New(db, DriverSQLite, nil).Put(context.Background(), dwiComponent(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_EntityNamesWithCommas(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	odd, err := bids.NewComponent("odd", "{a,b}/{c}", map[string][]string{
		"a,b": {"1", "2"},
		"c":   {"x", "y"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, odd))

	got, err := s.Get(ctx, "odd")
	require.NoError(t, err)
	assert.Equal(t, []string{"a,b", "c"}, got.ZipList.Entities())
	assert.Equal(t, []string{"1", "2"}, got.ZipList.Values("a,b"))
}

func TestStore_Revisions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, dwiComponent(t)))
	first, err := s.Revisions(ctx, []string{"dwi", "t1w"})
	require.NoError(t, err)
	require.Contains(t, first, "dwi")
	assert.NotContains(t, first, "t1w")

	require.NoError(t, s.Put(ctx, dwiComponent(t)))
	second, err := s.Revisions(ctx, []string{"dwi"})
	require.NoError(t, err)
	assert.NotEqual(t, first["dwi"], second["dwi"])

	require.NoError(t, s.Delete(ctx, "dwi"))
	third, err := s.Revisions(ctx, []string{"dwi"})
	require.NoError(t, err)
	assert.Empty(t, third)
}
