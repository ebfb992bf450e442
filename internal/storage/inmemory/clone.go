package inmemory

import (
	"time"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
)

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneStory(s *domain.Story) *domain.Story {
	c := *s
	c.PublishedAt = cloneTime(s.PublishedAt)
	c.Genres = append(make([]string, 0, len(s.Genres)), s.Genres...)
	return &c
}

func cloneChapter(ch *domain.Chapter) *domain.Chapter {
	c := *ch
	c.PublishedAt = cloneTime(ch.PublishedAt)
	return &c
}

func cloneRating(r *domain.Rating) *domain.Rating {
	c := *r
	return &c
}

func cloneComment(cm *domain.Comment) *domain.Comment {
	c := *cm
	c.ChapterID = cloneString(cm.ChapterID)
	return &c
}

func cloneProgress(p *domain.ReadingProgress) *domain.ReadingProgress {
	c := *p
	c.ChapterID = cloneString(p.ChapterID)
	if p.Position != nil {
		pos := *p.Position
		c.Position = &pos
	}
	return &c
}
