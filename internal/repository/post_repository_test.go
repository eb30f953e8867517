package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

var postColumnNames = []string{
	"id", "owner_id", "platforms", "scheduled_for", "status", "captions", "image_urls",
	"error", "published_at", "outcomes", "created_at", "updated_at",
}

func newPostRepo(t *testing.T) (repository.PostRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return repository.NewPostRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestPostRepository_ListDue(t *testing.T) {
	repo, mock := newPostRepo(t)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(postColumnNames).
		AddRow("p1", "shop-1", []byte("{facebook,instagram}"), now.Add(-time.Minute), "scheduled",
			[]byte(`{"facebook":"fb caption","default":"hello"}`), []byte("{https://cdn.test/a.jpg}"),
			nil, nil, nil, now, now).
		AddRow("p2", "shop-2", []byte("{instagram}"), now.Add(-time.Hour), "scheduled",
			[]byte(`{}`), []byte("{https://cdn.test/b.jpg,https://cdn.test/c.jpg}"),
			nil, nil, []byte(`[]`), now, now)

	mock.ExpectQuery("SELECT (.+) FROM scheduled_posts").
		WithArgs("scheduled", now, 10).
		WillReturnRows(rows)

	posts, err := repo.ListDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, []string{"facebook", "instagram"}, []string(posts[0].Platforms))
	assert.Equal(t, "fb caption", posts[0].Captions["facebook"])
	assert.Nil(t, posts[0].Error)
	assert.Nil(t, posts[0].PublishedAt)
	assert.Len(t, posts[1].ImageURLs, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_Claim(t *testing.T) {
	testCases := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		want      bool
		wantErr   bool
	}{
		{
			name: "claims scheduled post",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE scheduled_posts").
					WithArgs("p1", "processing", "scheduled").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			want: true,
		},
		{
			name: "post already claimed by another run",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE scheduled_posts").
					WithArgs("p1", "processing", "scheduled").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			want: false,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE scheduled_posts").
					WithArgs("p1", "processing", "scheduled").
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newPostRepo(t)
			tc.setupMock(mock)

			got, err := repo.Claim(context.Background(), "p1")
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostRepository_Complete(t *testing.T) {
	t.Run("writes result for claimed post", func(t *testing.T) {
		repo, mock := newPostRepo(t)
		publishedAt := time.Now()

		mock.ExpectExec("UPDATE scheduled_posts").
			WithArgs("p1", "published", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "processing").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Complete(context.Background(), "p1", &models.PostResult{
			Status:      models.PostStatusPublished,
			PublishedAt: &publishedAt,
			Outcomes:    models.Outcomes{{Platform: "facebook", Success: true, ExternalID: "123"}},
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("post no longer processing", func(t *testing.T) {
		repo, mock := newPostRepo(t)
		reason := "facebook: account not connected"

		mock.ExpectExec("UPDATE scheduled_posts").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Complete(context.Background(), "p1", &models.PostResult{
			Status: models.PostStatusFailed,
			Error:  &reason,
		})
		assert.ErrorIs(t, err, repository.ErrPostNotProcessing)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostRepository_GetByIDNotFound(t *testing.T) {
	repo, mock := newPostRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM scheduled_posts WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(postColumnNames))

	post, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, post)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_FailStale(t *testing.T) {
	repo, mock := newPostRepo(t)

	mock.ExpectExec("UPDATE scheduled_posts").
		WithArgs("failed", "abandoned", "processing", float64(900)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.FailStale(context.Background(), 15*time.Minute, "abandoned")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
