// internal/storage/gormdb/store_test.go

package gormdb

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
	"github.com/UkralStul/serial-fiction-service/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

// newTestStore открывает SQLite в памяти с мигрированной схемой и одной историей
func newTestStore(t *testing.T) (*Store, *domain.Story) {
	store, err := OpenSQLite(":memory:", logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	story, err := store.CreateStory(context.Background(), &domain.Story{
		AuthorID:         "author-1",
		Title:            "Test Story",
		Body:             "Body",
		EnableCommenting: true,
		Status:           domain.StatusPublished,
		Genres:           []string{"fantasy", "adventure"},
	})
	require.NoError(t, err)
	return store, story
}

func addChapters(t *testing.T, s *Store, storyID string, n int) []*domain.Chapter {
	res := make([]*domain.Chapter, 0, n)
	for i := 0; i < n; i++ {
		ch, err := s.CreateChapter(context.Background(), &domain.Chapter{StoryID: storyID, Title: "Chapter", Body: "Text"})
		require.NoError(t, err)
		res = append(res, ch)
	}
	return res
}

func TestStore_CreateAndGetStory(t *testing.T) {
	store, story := newTestStore(t)
	ctx := context.Background()

	retrieved, err := store.GetStoryByID(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, story.Title, retrieved.Title)
	assert.True(t, retrieved.EnableCommenting)
	assert.Equal(t, []string{"adventure", "fantasy"}, retrieved.Genres)

	_, err = store.GetStoryByID(ctx, "non-existent-id")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_FalseFlagsPersist(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	story, err := store.CreateStory(ctx, &domain.Story{AuthorID: "a", Title: "Quiet", Status: domain.StatusDraft})
	require.NoError(t, err)

	loaded, err := store.GetStoryByID(ctx, story.ID)
	require.NoError(t, err)
	assert.False(t, loaded.EnableCommenting)
	assert.Empty(t, loaded.Genres)
}

func TestStore_UpdateStory(t *testing.T) {
	store, story := newTestStore(t)
	ctx := context.Background()

	updated, err := store.UpdateStory(ctx, &domain.Story{
		ID:       story.ID,
		AuthorID: "someone-else",
		Title:    "Renamed",
		Status:   domain.StatusDraft,
		Genres:   []string{"horror"},
	})
	require.NoError(t, err)
	assert.Equal(t, "author-1", updated.AuthorID)
	assert.Equal(t, "Renamed", updated.Title)
	assert.False(t, updated.EnableCommenting)

	loaded, err := store.GetStoryByID(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"horror"}, loaded.Genres)
	assert.Equal(t, domain.StatusDraft, loaded.Status)

	_, err = store.UpdateStory(ctx, &domain.Story{ID: "missing"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_GetStoriesFilters(t *testing.T) {
	store, story := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateStory(ctx, &domain.Story{AuthorID: "author-2", Title: "Draft", Status: domain.StatusDraft, Genres: []string{"fantasy"}})
	require.NoError(t, err)
	_, err = store.CreateStory(ctx, &domain.Story{AuthorID: "author-2", Title: "Sci", Status: domain.StatusPublished, Genres: []string{"scifi"}})
	require.NoError(t, err)

	anonymous, err := store.GetStories(ctx, storage.StoryFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, anonymous, 2)

	asAuthor, err := store.GetStories(ctx, storage.StoryFilter{ReaderID: "author-2"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, asAuthor, 3)

	fantasy, err := store.GetStories(ctx, storage.StoryFilter{Genre: "fantasy"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, fantasy, 1)
	assert.Equal(t, story.ID, fantasy[0].ID)
	assert.Equal(t, []string{"adventure", "fantasy"}, fantasy[0].Genres)

	byAuthor, err := store.GetStories(ctx, storage.StoryFilter{AuthorID: "author-2", ReaderID: "author-2"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byAuthor, 2)

	paged, err := store.GetStories(ctx, storage.StoryFilter{ReaderID: "author-2"}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestStore_ChapterPositionsAppendOnly(t *testing.T) {
	store, story := newTestStore(t)
	ctx := context.Background()

	chapters := addChapters(t, store, story.ID, 3)
	assert.Equal(t, 1, chapters[0].Position)
	assert.Equal(t, 3, chapters[2].Position)

	require.NoError(t, store.DeleteChapter(ctx, chapters[1].ID))

	remaining, err := store.GetChaptersByStoryID(ctx, story.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, 1, remaining[0].Position)
	assert.Equal(t, 3, remaining[1].Position)

	next := addChapters(t, store, story.ID, 1)
	assert.Equal(t, 4, next[0].Position)
}

func TestStore_CreateChapter_UnknownStory(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.CreateChapter(context.Background(), &domain.Chapter{StoryID: "missing", Title: "T"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_ConcurrentChapterCreationUniquePositions(t *testing.T) {
	store, story := newTestStore(t)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateChapter(context.Background(), &domain.Chapter{StoryID: story.ID, Title: "C"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	chapters, err := store.GetChaptersByStoryID(context.Background(), story.ID)
	require.NoError(t, err)
	require.Len(t, chapters, workers)
	for i, ch := range chapters {
		assert.Equal(t, i+1, ch.Position)
	}
}

func TestStore_UpsertRatingKeepsIdentity(t *testing.T) {
	store, story := newTestStore(t)
	ctx := context.Background()

	first, err := store.UpsertRating(ctx, &domain.Rating{ReaderID: "r1", TargetType: domain.TargetStory, TargetID: story.ID, StoryID: story.ID, Score: 2})
	require.NoError(t, err)
	second, err := store.UpsertRating(ctx, &domain.Rating{ReaderID: "r1", TargetType: domain.TargetStory, TargetID: story.ID, StoryID: story.ID, Score: 5})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Score)

	byTarget, err := store.GetRatingsByTargetIDs(ctx, domain.TargetStory, []string{story.ID, "other"})
	require.NoError(t, err)
	require.Len(t, byTarget[story.ID], 1)
	assert.Equal(t, 5, byTarget[story.ID][0].Score)
	assert.Equal(t, "r1", byTarget[story.ID][0].ReaderID)
	assert.Empty(t, byTarget["other"])
}

func TestStore_DeleteChapterCascades(t *testing.T) {
	store, story := newTestStore(t)
	ctx := context.Background()

	chapter := addChapters(t, store, story.ID, 1)[0]
	_, err := store.UpsertRating(ctx, &domain.Rating{ReaderID: "r1", TargetType: domain.TargetChapter, TargetID: chapter.ID, StoryID: story.ID, Score: 4})
	require.NoError(t, err)
	_, err = store.CreateComment(ctx, &domain.Comment{StoryID: story.ID, ChapterID: &chapter.ID, AuthorID: "r1", Body: "nice"})
	require.NoError(t, err)
	pos := chapter.Position
	_, err = store.UpsertReadingProgress(ctx, &domain.ReadingProgress{ReaderID: "r1", StoryID: story.ID, ChapterID: &chapter.ID, Position: &pos})
	require.NoError(t, err)

	require.NoError(t, store.DeleteChapter(ctx, chapter.ID))

	_, err = store.GetChapterByID(ctx, chapter.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	ratings, err := store.GetRatingsByTargetIDs(ctx, domain.TargetChapter, []string{chapter.ID})
	require.NoError(t, err)
	assert.Empty(t, ratings[chapter.ID])
	comments, err := store.GetCommentsByTarget(ctx, domain.TargetChapter, chapter.ID, storage.PaginationArgs{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, comments)

	progress, err := store.GetReadingProgress(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Nil(t, progress[0].ChapterID)
	assert.Nil(t, progress[0].Position)

	assert.True(t, errors.Is(store.DeleteChapter(ctx, chapter.ID), domain.ErrNotFound))
}

func TestStore_DeleteStoryCascades(t *testing.T) {
	store, story := newTestStore(t)
	ctx := context.Background()

	chapter := addChapters(t, store, story.ID, 1)[0]
	_, err := store.UpsertRating(ctx, &domain.Rating{ReaderID: "r1", TargetType: domain.TargetStory, TargetID: story.ID, StoryID: story.ID, Score: 3})
	require.NoError(t, err)
	_, err = store.CreateComment(ctx, &domain.Comment{StoryID: story.ID, AuthorID: "r1", Body: "hi"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteStory(ctx, story.ID))

	_, err = store.GetStoryByID(ctx, story.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = store.GetChapterByID(ctx, chapter.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	var ratings, comments, genres int64
	require.NoError(t, store.db.Model(&domain.Rating{}).Count(&ratings).Error)
	require.NoError(t, store.db.Model(&domain.Comment{}).Count(&comments).Error)
	require.NoError(t, store.db.Model(&domain.StoryGenre{}).Count(&genres).Error)
	assert.Zero(t, ratings)
	assert.Zero(t, comments)
	assert.Zero(t, genres)
}

func TestStore_CommentPagination(t *testing.T) {
	store, story := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		c, err := store.CreateComment(ctx, &domain.Comment{StoryID: story.ID, AuthorID: "r1", Body: "c"})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	page, err := store.GetCommentsByTarget(ctx, domain.TargetStory, story.ID, storage.PaginationArgs{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)

	rest, err := store.GetCommentsByTarget(ctx, domain.TargetStory, story.ID, storage.PaginationArgs{Limit: 2, Cursor: &page[1].ID})
	require.NoError(t, err)
	require.Len(t, rest, 1)

	seen := []string{page[0].ID, page[1].ID, rest[0].ID}
	assert.ElementsMatch(t, ids, seen)
}

func TestStore_CreateComment_ChapterOfOtherStory(t *testing.T) {
	store, story := newTestStore(t)
	ctx := context.Background()

	other, err := store.CreateStory(ctx, &domain.Story{AuthorID: "a", Title: "Other", Status: domain.StatusPublished})
	require.NoError(t, err)
	chapter := addChapters(t, store, other.ID, 1)[0]

	_, err = store.CreateComment(ctx, &domain.Comment{StoryID: story.ID, ChapterID: &chapter.ID, AuthorID: "r", Body: "x"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
