package rating

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
)

func ratingsOf(targetID string, scores ...int) []*domain.Rating {
	res := make([]*domain.Rating, 0, len(scores))
	for i, s := range scores {
		res = append(res, &domain.Rating{
			ID:         targetID + "-r" + string(rune('a'+i)),
			ReaderID:   "reader-" + string(rune('a'+i)),
			TargetType: domain.TargetChapter,
			TargetID:   targetID,
			Score:      s,
		})
	}
	return res
}

func TestValidateScore(t *testing.T) {
	for s := MinScore; s <= MaxScore; s++ {
		assert.NoError(t, ValidateScore(s))
	}
	for _, s := range []int{-1, 0, 6, 100} {
		err := ValidateScore(s)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrValidation))
	}
}

func TestMean(t *testing.T) {
	assert.Equal(t, Aggregate{}, Mean(nil))
	assert.False(t, Mean(nil).HasRatings())

	got := Mean(ratingsOf("a", 4, 5))
	assert.InDelta(t, 4.5, got.Average, 1e-9)
	assert.Equal(t, 2, got.Count)
}

func TestStatusFor(t *testing.T) {
	ratings := ratingsOf("a", 2, 5)

	status := StatusFor(ratings, "reader-b")
	require.NotNil(t, status)
	assert.Equal(t, 5, *status)

	assert.Nil(t, StatusFor(ratings, "someone-else"))
	assert.Nil(t, StatusFor(ratings, ""))
}

func TestStatusFor_PicksMostRecent(t *testing.T) {
	now := time.Now()
	ratings := []*domain.Rating{
		{ID: "1", ReaderID: "r", Score: 2, UpdatedAt: now.Add(-time.Minute)},
		{ID: "2", ReaderID: "r", Score: 4, UpdatedAt: now},
	}
	status := StatusFor(ratings, "r")
	require.NotNil(t, status)
	assert.Equal(t, 4, *status)
}

// Глава A: [4, 5] -> 4.5, глава B без оценок. Оценка истории 4.5, а не (4.5+0)/2.
func TestStoryAggregate_SkipsUnratedChapters(t *testing.T) {
	chapterA := Mean(ratingsOf("A", 4, 5))
	chapterB := Mean(nil)

	got := StoryAggregate([]Aggregate{chapterA, chapterB}, nil)
	assert.InDelta(t, 4.5, got.Average, 1e-9)
	assert.Equal(t, 1, got.Count)
}

func TestStoryAggregate_MeanOfChapterMeans(t *testing.T) {
	// 10 оценок у популярной главы не перевешивают одну оценку у другой.
	popular := Mean(ratingsOf("A", 5, 5, 5, 5, 5, 5, 5, 5, 5, 5))
	quiet := Mean(ratingsOf("B", 1))

	got := StoryAggregate([]Aggregate{popular, quiet}, nil)
	assert.InDelta(t, 3.0, got.Average, 1e-9)
	assert.Equal(t, 2, got.Count)
}

func TestStoryAggregate_FallsBackToDirectRatings(t *testing.T) {
	direct := ratingsOf("story", 3, 4)
	for _, r := range direct {
		r.TargetType = domain.TargetStory
	}

	got := StoryAggregate([]Aggregate{{}, {}}, direct)
	assert.InDelta(t, 3.5, got.Average, 1e-9)
	assert.Equal(t, 2, got.Count)

	assert.False(t, StoryAggregate(nil, nil).HasRatings())
}

func TestCheckUnique(t *testing.T) {
	assert.NoError(t, CheckUnique(ratingsOf("a", 1, 2, 3)))

	dup := append(ratingsOf("a", 1), &domain.Rating{ID: "dup", ReaderID: "reader-a", TargetType: domain.TargetChapter, TargetID: "a", Score: 3})
	err := CheckUnique(dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConsistency))
}
