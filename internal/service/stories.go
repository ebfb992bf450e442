package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
	"github.com/UkralStul/serial-fiction-service/internal/publication"
	"github.com/UkralStul/serial-fiction-service/internal/sanitizer"
	"github.com/UkralStul/serial-fiction-service/internal/storage"
)

const (
	maxTitleLength = 255
	maxGenreLength = 64
)

// StoryInput - изменяемые поля истории. nil означает "не менять";
// при создании отсутствующие поля получают значения по умолчанию.
type StoryInput struct {
	Title            *string               `json:"title"`
	Body             *string               `json:"body"`
	Summary          *string               `json:"summary"`
	EnableCommenting *bool                 `json:"enableCommenting"`
	Status           *domain.PublishStatus `json:"status"`
	Genres           []string              `json:"genres"`
}

// StoryFilter - параметры списка историй.
type StoryFilter struct {
	AuthorID string
	Genre    string
}

// === Story Mutations ===

func (s *Service) CreateStory(ctx context.Context, actorID string, in StoryInput) (*StoryView, error) {
	if actorID == "" {
		return nil, domain.Forbidden("anonymous readers cannot create stories")
	}
	story := &domain.Story{
		AuthorID:         actorID,
		EnableCommenting: true,
		Genres:           []string{},
	}
	if err := s.applyStoryInput(story, publication.Initial(), in); err != nil {
		return nil, err
	}
	if story.Title == "" {
		return nil, domain.Invalid("title", "is required")
	}

	created, err := s.store.CreateStory(ctx, story)
	if err != nil {
		return nil, s.inconsistent(ctx, err)
	}
	s.logger.InfoContext(ctx, "story_created",
		slog.String("story_id", created.ID),
		slog.String("author_id", actorID),
		slog.String("status", string(created.Status)),
	)
	return s.storyView(ctx, created, actorID)
}

func (s *Service) UpdateStory(ctx context.Context, actorID, storyID string, in StoryInput) (*StoryView, error) {
	existing, err := s.loadOwnedStory(ctx, actorID, storyID)
	if err != nil {
		return nil, err
	}
	story := *existing
	if err := s.applyStoryInput(&story, publication.OfStory(existing), in); err != nil {
		return nil, err
	}
	if story.Title == "" {
		return nil, domain.Invalid("title", "is required")
	}

	updated, err := s.store.UpdateStory(ctx, &story)
	if err != nil {
		return nil, s.inconsistent(ctx, err)
	}
	s.logger.InfoContext(ctx, "story_updated",
		slog.String("story_id", storyID),
		slog.String("status", string(updated.Status)),
	)
	return s.storyView(ctx, updated, actorID)
}

func (s *Service) DeleteStory(ctx context.Context, actorID, storyID string) error {
	if _, err := s.loadOwnedStory(ctx, actorID, storyID); err != nil {
		return err
	}
	if err := s.store.DeleteStory(ctx, storyID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "story_deleted", slog.String("story_id", storyID))
	return nil
}

// applyStoryInput очищает текст, проверяет поля и применяет запрошенный статус.
func (s *Service) applyStoryInput(story *domain.Story, current publication.State, in StoryInput) error {
	if in.Title != nil {
		story.Title = sanitizer.SanitizePlain(*in.Title)
	}
	if in.Body != nil {
		story.Body = sanitizer.Sanitize(*in.Body)
	}
	if in.Summary != nil {
		story.Summary = sanitizer.Sanitize(*in.Summary)
	}
	if in.EnableCommenting != nil {
		story.EnableCommenting = *in.EnableCommenting
	}
	if in.Genres != nil {
		genres, err := normalizeGenres(in.Genres)
		if err != nil {
			return err
		}
		story.Genres = genres
	}
	if utf8.RuneCountInString(story.Title) > maxTitleLength {
		return domain.Invalid("title", "is too long")
	}

	requested := current.Status
	if in.Status != nil {
		if !in.Status.Valid() {
			return domain.Invalid("status", "must be draft or published")
		}
		requested = *in.Status
	}
	next := publication.Apply(current, requested, s.now())
	story.Status, story.PublishedAt = next.Status, next.PublishedAt
	return nil
}

// normalizeGenres приводит теги к нижнему регистру и убирает пустые и повторяющиеся.
func normalizeGenres(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	res := make([]string, 0, len(raw))
	for _, g := range raw {
		tag := strings.ToLower(sanitizer.SanitizePlain(g))
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > maxGenreLength {
			return nil, domain.Invalid("genres", "contain a tag that is too long")
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		res = append(res, tag)
	}
	sort.Strings(res)
	return res, nil
}

// === Story Queries ===

func (s *Service) GetStory(ctx context.Context, readerID, storyID string) (*StoryView, error) {
	story, err := s.loadVisibleStory(ctx, readerID, storyID)
	if err != nil {
		return nil, err
	}
	return s.storyView(ctx, story, readerID)
}

// ListStories возвращает видимые читателю истории, новые первыми.
// Истории дополняются оценками параллельно, чтобы дата-лоадеры объединили чтения в батчи.
func (s *Service) ListStories(ctx context.Context, readerID string, filter StoryFilter, limit, offset int) ([]*StoryView, error) {
	if offset < 0 {
		offset = 0
	}
	stories, err := s.store.GetStories(ctx, storage.StoryFilter{
		AuthorID: filter.AuthorID,
		Genre:    strings.ToLower(strings.TrimSpace(filter.Genre)),
		ReaderID: readerID,
	}, normalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}

	views := make([]*StoryView, len(stories))
	g, gctx := errgroup.WithContext(ctx)
	for i, story := range stories {
		g.Go(func() error {
			view, err := s.storyView(gctx, story, readerID)
			if err != nil {
				return err
			}
			views[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Service) storyView(ctx context.Context, story *domain.Story, readerID string) (*StoryView, error) {
	chapters, err := s.store.GetChaptersByStoryID(ctx, story.ID)
	if err != nil {
		return nil, err
	}
	score, status, err := s.storyScore(ctx, story, chapters, readerID)
	if err != nil {
		return nil, err
	}
	return &StoryView{
		Story:        story,
		Score:        score,
		ReaderStatus: status,
		ChapterCount: len(visibleChapters(story, chapters, readerID)),
	}, nil
}
