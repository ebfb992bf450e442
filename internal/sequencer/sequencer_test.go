package sequencer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
)

func chaptersAt(storyID string, positions ...int) []*domain.Chapter {
	res := make([]*domain.Chapter, 0, len(positions))
	for _, p := range positions {
		res = append(res, &domain.Chapter{ID: fmt.Sprintf("%s-ch%d", storyID, p), StoryID: storyID, Position: p})
	}
	return res
}

func byPosition(chapters []*domain.Chapter, pos int) *domain.Chapter {
	for _, c := range chapters {
		if c.Position == pos {
			return c
		}
	}
	return nil
}

func TestNextPosition(t *testing.T) {
	assert.Equal(t, 1, NextPosition(nil))
	assert.Equal(t, 4, NextPosition([]int{1, 2, 3}))
	assert.Equal(t, 6, NextPosition([]int{5, 1, 3}))
}

func TestNavigation_WithGap(t *testing.T) {
	chapters := chaptersAt("s1", 5, 1, 3, 2)

	assert.Equal(t, byPosition(chapters, 2), PreviousOf(chapters, byPosition(chapters, 3)))
	assert.Equal(t, byPosition(chapters, 5), NextOf(chapters, byPosition(chapters, 3)))
	assert.Nil(t, PreviousOf(chapters, byPosition(chapters, 1)))
	assert.Nil(t, NextOf(chapters, byPosition(chapters, 5)))
}

func TestNavigation_IgnoresOtherStories(t *testing.T) {
	chapters := append(chaptersAt("s1", 1, 3), chaptersAt("s2", 2)...)
	first := byPosition(chapters, 1)

	next := NextOf(chapters, first)
	require.NotNil(t, next)
	assert.Equal(t, "s1", next.StoryID)
	assert.Equal(t, 3, next.Position)
}

func TestNavigation_AfterDeletionNoRenumbering(t *testing.T) {
	chapters := chaptersAt("s1", 1, 2, 3)
	chapters = append(chapters[:1], chapters[2:]...)

	positions := make([]int, 0, len(chapters))
	for _, c := range chapters {
		positions = append(positions, c.Position)
	}
	assert.Equal(t, []int{1, 3}, positions)

	nav := Navigate(chapters, byPosition(chapters, 1))
	assert.Nil(t, nav.PreviousID)
	require.NotNil(t, nav.NextID)
	assert.Equal(t, "s1-ch3", *nav.NextID)
}

func TestSort(t *testing.T) {
	chapters := chaptersAt("s1", 4, 2, 9, 1)
	Sort(chapters)
	assert.Equal(t, []int{1, 2, 4, 9}, []int{chapters[0].Position, chapters[1].Position, chapters[2].Position, chapters[3].Position})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(chaptersAt("s1", 1, 2, 5)))
	assert.NoError(t, Validate(append(chaptersAt("s1", 1), chaptersAt("s2", 1)...)))

	dup := append(chaptersAt("s1", 1, 2), &domain.Chapter{ID: "x", StoryID: "s1", Position: 2})
	err := Validate(dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConsistency))

	err = Validate(chaptersAt("s1", 0))
	assert.True(t, errors.Is(err, domain.ErrConsistency))
}
