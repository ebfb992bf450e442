package service

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
	"github.com/UkralStul/serial-fiction-service/internal/publication"
	"github.com/UkralStul/serial-fiction-service/internal/rating"
	"github.com/UkralStul/serial-fiction-service/internal/sanitizer"
	"github.com/UkralStul/serial-fiction-service/internal/sequencer"
)

// ChapterInput - изменяемые поля главы. Позицию назначает хранилище.
type ChapterInput struct {
	Title            *string               `json:"title"`
	Body             *string               `json:"body"`
	EnableCommenting *bool                 `json:"enableCommenting"`
	Status           *domain.PublishStatus `json:"status"`
}

// === Chapter Mutations ===

func (s *Service) CreateChapter(ctx context.Context, actorID, storyID string, in ChapterInput) (*ChapterView, error) {
	story, err := s.loadOwnedStory(ctx, actorID, storyID)
	if err != nil {
		return nil, err
	}
	chapter := &domain.Chapter{StoryID: story.ID, EnableCommenting: true}
	if err := s.applyChapterInput(chapter, publication.Initial(), in); err != nil {
		return nil, err
	}

	created, err := s.store.CreateChapter(ctx, chapter)
	if err != nil {
		return nil, s.inconsistent(ctx, err)
	}

	chapters, err := s.store.GetChaptersByStoryID(ctx, story.ID)
	if err != nil {
		return nil, err
	}
	if err := sequencer.Validate(chapters); err != nil {
		return nil, s.inconsistent(ctx, err)
	}
	s.logger.InfoContext(ctx, "chapter_created",
		slog.String("story_id", story.ID),
		slog.String("chapter_id", created.ID),
		slog.Int("position", created.Position),
	)
	return s.chapterView(ctx, story, created, chapters, actorID)
}

func (s *Service) UpdateChapter(ctx context.Context, actorID, chapterID string, in ChapterInput) (*ChapterView, error) {
	story, existing, err := s.loadOwnedChapter(ctx, actorID, chapterID)
	if err != nil {
		return nil, err
	}
	chapter := *existing
	if err := s.applyChapterInput(&chapter, publication.OfChapter(existing), in); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateChapter(ctx, &chapter)
	if err != nil {
		return nil, s.inconsistent(ctx, err)
	}
	s.logger.InfoContext(ctx, "chapter_updated",
		slog.String("chapter_id", chapterID),
		slog.String("status", string(updated.Status)),
	)

	chapters, err := s.store.GetChaptersByStoryID(ctx, story.ID)
	if err != nil {
		return nil, err
	}
	return s.chapterView(ctx, story, updated, chapters, actorID)
}

// DeleteChapter удаляет главу; позиции остальных глав не меняются.
func (s *Service) DeleteChapter(ctx context.Context, actorID, chapterID string) error {
	story, chapter, err := s.loadOwnedChapter(ctx, actorID, chapterID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteChapter(ctx, chapterID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "chapter_deleted",
		slog.String("story_id", story.ID),
		slog.String("chapter_id", chapterID),
		slog.Int("position", chapter.Position),
	)
	return nil
}

func (s *Service) applyChapterInput(chapter *domain.Chapter, current publication.State, in ChapterInput) error {
	if in.Title != nil {
		chapter.Title = sanitizer.SanitizePlain(*in.Title)
	}
	if in.Body != nil {
		chapter.Body = sanitizer.Sanitize(*in.Body)
	}
	if in.EnableCommenting != nil {
		chapter.EnableCommenting = *in.EnableCommenting
	}
	switch {
	case chapter.Title == "":
		return domain.Invalid("title", "is required")
	case utf8.RuneCountInString(chapter.Title) > maxTitleLength:
		return domain.Invalid("title", "is too long")
	case chapter.Body == "":
		return domain.Invalid("body", "is required")
	}

	requested := current.Status
	if in.Status != nil {
		if !in.Status.Valid() {
			return domain.Invalid("status", "must be draft or published")
		}
		requested = *in.Status
	}
	next := publication.Apply(current, requested, s.now())
	chapter.Status, chapter.PublishedAt = next.Status, next.PublishedAt
	return nil
}

// === Chapter Queries ===

func (s *Service) GetChapter(ctx context.Context, readerID, chapterID string) (*ChapterView, error) {
	story, chapter, err := s.loadVisibleChapter(ctx, readerID, chapterID)
	if err != nil {
		return nil, err
	}
	chapters, err := s.store.GetChaptersByStoryID(ctx, story.ID)
	if err != nil {
		return nil, err
	}
	return s.chapterView(ctx, story, chapter, chapters, readerID)
}

// ListChapters возвращает видимые читателю главы в порядке чтения.
func (s *Service) ListChapters(ctx context.Context, readerID, storyID string) ([]*ChapterView, error) {
	story, err := s.loadVisibleStory(ctx, readerID, storyID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.GetChaptersByStoryID(ctx, story.ID)
	if err != nil {
		return nil, err
	}
	if err := sequencer.Validate(all); err != nil {
		return nil, s.inconsistent(ctx, err)
	}
	chapters := visibleChapters(story, all, readerID)

	ids := make([]string, len(chapters))
	for i, c := range chapters {
		ids[i] = c.ID
	}
	perChapter, err := s.ratingsForMany(ctx, domain.TargetChapter, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*ChapterView, len(chapters))
	for i, c := range chapters {
		views[i] = &ChapterView{
			Chapter:      c,
			Score:        rating.Mean(perChapter[i]),
			ReaderStatus: rating.StatusFor(perChapter[i], readerID),
			Navigation:   sequencer.Navigate(chapters, c),
		}
	}
	return views, nil
}

// GetChapterNavigation возвращает соседние главы. Черновики пропускаются для всех,
// кроме автора.
func (s *Service) GetChapterNavigation(ctx context.Context, readerID, chapterID string) (sequencer.Navigation, error) {
	story, chapter, err := s.loadVisibleChapter(ctx, readerID, chapterID)
	if err != nil {
		return sequencer.Navigation{}, err
	}
	chapters, err := s.store.GetChaptersByStoryID(ctx, story.ID)
	if err != nil {
		return sequencer.Navigation{}, err
	}
	return sequencer.Navigate(visibleChapters(story, chapters, readerID), chapter), nil
}

func (s *Service) chapterView(ctx context.Context, story *domain.Story, chapter *domain.Chapter, siblings []*domain.Chapter, readerID string) (*ChapterView, error) {
	ratings, err := s.ratingsFor(ctx, domain.TargetChapter, chapter.ID)
	if err != nil {
		return nil, err
	}
	return &ChapterView{
		Chapter:      chapter,
		Score:        rating.Mean(ratings),
		ReaderStatus: rating.StatusFor(ratings, readerID),
		Navigation:   sequencer.Navigate(visibleChapters(story, siblings, readerID), chapter),
	}, nil
}
