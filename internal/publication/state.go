// Package publication управляет переходами Draft <-> Published.
package publication

import (
	"time"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
)

// State - статус публикации вместе с меткой первой публикации.
type State struct {
	Status      domain.PublishStatus
	PublishedAt *time.Time
}

// Initial - состояние новой истории или главы до применения запрошенного статуса.
func Initial() State {
	return State{Status: domain.StatusDraft}
}

// Apply применяет запрошенный статус. PublishedAt выставляется только при первом переходе
// в Published и дальше не меняется: ни повторная публикация, ни возврат в черновик его не трогают.
func Apply(current State, requested domain.PublishStatus, now time.Time) State {
	next := State{Status: requested, PublishedAt: current.PublishedAt}
	if requested == domain.StatusPublished && current.PublishedAt == nil {
		t := now.UTC()
		next.PublishedAt = &t
	}
	return next
}

// OfStory и OfChapter извлекают состояние из сущностей.
func OfStory(s *domain.Story) State {
	return State{Status: s.Status, PublishedAt: s.PublishedAt}
}

func OfChapter(c *domain.Chapter) State {
	return State{Status: c.Status, PublishedAt: c.PublishedAt}
}
