package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/repository"
)

func newMockRepo(t *testing.T) (*SnapshotRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSnapshotRepository(NewClientWithDB(db)), mock
}

func TestSnapshotRepository_Save(t *testing.T) {
	repo, mock := newMockRepo(t)
	snap := &entity.ProjectSnapshot{ID: "s1", Title: "Heist", Document: []byte(`{"title":"Heist"}`), CreatedAt: time.Unix(100, 0).UTC()}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_snapshots")).
		WithArgs("s1", "Heist", []byte(`{"title":"Heist"}`), snap.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_Get(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Unix(200, 0).UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM project_snapshots")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "document", "created_at"}).
			AddRow("s1", "Heist", []byte(`{"a":1}`), created))

	snap, err := repo.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Heist", snap.Title)
	assert.JSONEq(t, `{"a":1}`, string(snap.Document))
	assert.True(t, created.Equal(snap.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_GetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM project_snapshots")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, repository.ErrSnapshotNotFound))
}

func TestSnapshotRepository_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "created_at"}).
			AddRow("s2", "B", time.Unix(300, 0)).
			AddRow("s1", "A", time.Unix(100, 0)))

	list, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s2", list[0].ID)
	assert.Nil(t, list[0].Document)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_Delete(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM project_snapshots")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM project_snapshots")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "s1"))
	assert.True(t, errors.Is(repo.Delete(context.Background(), "s1"), repository.ErrSnapshotNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_EnsureSchemaAndHealth(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	c := NewClientWithDB(db)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS project_snapshots")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	require.NoError(t, c.EnsureSchema(context.Background()))
	require.NoError(t, c.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
