//go:build integration
// +build integration

package gormdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/serial-fiction-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm/logger"
)

// setupPostgres поднимает контейнер PostgreSQL и открывает на нем Store
func setupPostgres(t *testing.T) *Store {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("fiction"),
		postgres.WithUsername("fiction"),
		postgres.WithPassword("fiction"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := OpenPostgres(dsn, logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgres_ConcurrentChapterPositions(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	story, err := store.CreateStory(ctx, &domain.Story{AuthorID: "a", Title: "Serial", Status: domain.StatusPublished})
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateChapter(ctx, &domain.Chapter{StoryID: story.ID, Title: "C"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	chapters, err := store.GetChaptersByStoryID(ctx, story.ID)
	require.NoError(t, err)
	require.Len(t, chapters, workers)
	for i, ch := range chapters {
		assert.Equal(t, i+1, ch.Position)
	}
}

func TestPostgres_ConcurrentRatingUpsertSingleRow(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	story, err := store.CreateStory(ctx, &domain.Story{AuthorID: "a", Title: "Serial", Status: domain.StatusPublished})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for score := 1; score <= 5; score++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			_, err := store.UpsertRating(ctx, &domain.Rating{ReaderID: "r1", TargetType: domain.TargetStory, TargetID: story.ID, StoryID: story.ID, Score: score})
			assert.NoError(t, err)
		}(score)
	}
	wg.Wait()

	byTarget, err := store.GetRatingsByTargetIDs(ctx, domain.TargetStory, []string{story.ID})
	require.NoError(t, err)
	assert.Len(t, byTarget[story.ID], 1)
}

func TestPostgres_DuplicatePositionIsConsistencyError(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	story, err := store.CreateStory(ctx, &domain.Story{AuthorID: "a", Title: "Serial", Status: domain.StatusPublished})
	require.NoError(t, err)
	ch, err := store.CreateChapter(ctx, &domain.Chapter{StoryID: story.ID, Title: "C"})
	require.NoError(t, err)

	dup := *ch
	dup.ID = "00000000-0000-0000-0000-000000000001"
	err = translate(store.db.WithContext(ctx).Create(&dup).Error, "chapter", dup.ID)
	assert.True(t, errors.Is(err, domain.ErrConsistency))
}
