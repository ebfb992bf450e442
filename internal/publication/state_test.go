package publication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
)

func TestApply_FirstPublishSetsTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	got := Apply(Initial(), domain.StatusPublished, now)
	assert.Equal(t, domain.StatusPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, now.Equal(*got.PublishedAt))
}

func TestApply_DraftNeverSetsTimestamp(t *testing.T) {
	got := Apply(Initial(), domain.StatusDraft, time.Now())
	assert.Equal(t, domain.StatusDraft, got.Status)
	assert.Nil(t, got.PublishedAt)
}

func TestApply_TimestampSetExactlyOnce(t *testing.T) {
	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	s := Apply(Initial(), domain.StatusPublished, first)
	s = Apply(s, domain.StatusDraft, first.Add(time.Hour))
	require.NotNil(t, s.PublishedAt, "unpublishing keeps the first-published marker")
	assert.Equal(t, domain.StatusDraft, s.Status)

	s = Apply(s, domain.StatusPublished, first.Add(2*time.Hour))
	assert.Equal(t, domain.StatusPublished, s.Status)
	assert.True(t, first.Equal(*s.PublishedAt))

	s = Apply(s, domain.StatusPublished, first.Add(3*time.Hour))
	assert.True(t, first.Equal(*s.PublishedAt))
}

func TestApply_LeavesCurrentStateUntouched(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	current := State{Status: domain.StatusPublished, PublishedAt: &ts}

	next := Apply(current, domain.StatusDraft, time.Now())
	assert.Same(t, current.PublishedAt, next.PublishedAt)
	assert.Equal(t, domain.StatusPublished, current.Status)
}
