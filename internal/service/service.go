// Package service - точка входа для всех изменений: очищает ввод, применяет правила
// публикации, сохраняет данные и пересчитывает производные значения (оценки, навигацию).
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/UkralStul/serial-fiction-service/internal/dataloader"
	"github.com/UkralStul/serial-fiction-service/internal/domain"
	"github.com/UkralStul/serial-fiction-service/internal/rating"
	"github.com/UkralStul/serial-fiction-service/internal/sequencer"
	"github.com/UkralStul/serial-fiction-service/internal/storage"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Service реализует операции публикации и оценивания поверх storage.Storage.
type Service struct {
	store  storage.Storage
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store storage.Storage, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoryView - история с производными полями для конкретного читателя.
type StoryView struct {
	*domain.Story
	Score        rating.Aggregate `json:"score"`
	ReaderStatus *int             `json:"readerStatus"`
	ChapterCount int              `json:"chapterCount"`
}

// ChapterView - глава с оценкой, оценкой читателя и соседями в порядке чтения.
type ChapterView struct {
	*domain.Chapter
	Score        rating.Aggregate     `json:"score"`
	ReaderStatus *int                 `json:"readerStatus"`
	Navigation   sequencer.Navigation `json:"navigation"`
}

// === Visibility ===

func chapterVisible(story *domain.Story, chapter *domain.Chapter, readerID string) bool {
	if !story.Visible(readerID) {
		return false
	}
	return chapter.Status == domain.StatusPublished || (readerID != "" && story.AuthorID == readerID)
}

// visibleChapters оставляет главы, видимые читателю, в порядке позиций.
func visibleChapters(story *domain.Story, chapters []*domain.Chapter, readerID string) []*domain.Chapter {
	res := make([]*domain.Chapter, 0, len(chapters))
	for _, c := range chapters {
		if chapterVisible(story, c, readerID) {
			res = append(res, c)
		}
	}
	sequencer.Sort(res)
	return res
}

// loadVisibleStory возвращает NotFound и для отсутствующей, и для чужой черновой истории.
func (s *Service) loadVisibleStory(ctx context.Context, readerID, storyID string) (*domain.Story, error) {
	story, err := s.store.GetStoryByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if !story.Visible(readerID) {
		return nil, domain.NotFound("story", storyID)
	}
	return story, nil
}

func (s *Service) loadVisibleChapter(ctx context.Context, readerID, chapterID string) (*domain.Story, *domain.Chapter, error) {
	chapter, err := s.store.GetChapterByID(ctx, chapterID)
	if err != nil {
		return nil, nil, err
	}
	story, err := s.store.GetStoryByID(ctx, chapter.StoryID)
	if err != nil {
		return nil, nil, err
	}
	if !chapterVisible(story, chapter, readerID) {
		return nil, nil, domain.NotFound("chapter", chapterID)
	}
	return story, chapter, nil
}

// loadOwnedStory проверяет, что действующий пользователь - автор истории.
func (s *Service) loadOwnedStory(ctx context.Context, actorID, storyID string) (*domain.Story, error) {
	if actorID == "" {
		return nil, domain.Forbidden("anonymous readers cannot modify stories")
	}
	story, err := s.loadVisibleStory(ctx, actorID, storyID)
	if err != nil {
		return nil, err
	}
	if story.AuthorID != actorID {
		return nil, domain.Forbidden("only the author can modify the story")
	}
	return story, nil
}

func (s *Service) loadOwnedChapter(ctx context.Context, actorID, chapterID string) (*domain.Story, *domain.Chapter, error) {
	if actorID == "" {
		return nil, nil, domain.Forbidden("anonymous readers cannot modify chapters")
	}
	story, chapter, err := s.loadVisibleChapter(ctx, actorID, chapterID)
	if err != nil {
		return nil, nil, err
	}
	if story.AuthorID != actorID {
		return nil, nil, domain.Forbidden("only the author can modify chapters")
	}
	return story, chapter, nil
}

// === Ratings ===

// ratingsFor читает оценки цели через дата-лоадер запроса, если он есть.
func (s *Service) ratingsFor(ctx context.Context, targetType domain.TargetType, targetID string) ([]*domain.Rating, error) {
	loaders := dataloader.For(ctx)
	if loaders == nil {
		many, err := s.ratingsForMany(ctx, targetType, []string{targetID})
		if err != nil {
			return nil, err
		}
		return many[0], nil
	}
	ratings, err := loaders.LoadRatings(ctx, targetType, targetID)
	if err != nil {
		return nil, err
	}
	if err := rating.CheckUnique(ratings); err != nil {
		return nil, s.inconsistent(ctx, err)
	}
	return ratings, nil
}

func (s *Service) ratingsForMany(ctx context.Context, targetType domain.TargetType, targetIDs []string) ([][]*domain.Rating, error) {
	res := make([][]*domain.Rating, len(targetIDs))
	if len(targetIDs) == 0 {
		return res, nil
	}
	if loaders := dataloader.For(ctx); loaders != nil {
		var err error
		res, err = loaders.LoadManyRatings(ctx, targetType, targetIDs)
		if err != nil {
			return nil, err
		}
	} else {
		byTarget, err := s.store.GetRatingsByTargetIDs(ctx, targetType, targetIDs)
		if err != nil {
			return nil, err
		}
		for i, id := range targetIDs {
			res[i] = byTarget[id]
		}
	}
	for _, ratings := range res {
		if err := rating.CheckUnique(ratings); err != nil {
			return nil, s.inconsistent(ctx, err)
		}
	}
	return res, nil
}

// storyScore считает агрегат истории по всем ее главам и прямым оценкам.
func (s *Service) storyScore(ctx context.Context, story *domain.Story, chapters []*domain.Chapter, readerID string) (rating.Aggregate, *int, error) {
	ids := make([]string, len(chapters))
	for i, c := range chapters {
		ids[i] = c.ID
	}
	perChapter, err := s.ratingsForMany(ctx, domain.TargetChapter, ids)
	if err != nil {
		return rating.Aggregate{}, nil, err
	}
	aggregates := make([]rating.Aggregate, len(perChapter))
	for i, ratings := range perChapter {
		aggregates[i] = rating.Mean(ratings)
	}

	direct, err := s.ratingsFor(ctx, domain.TargetStory, story.ID)
	if err != nil {
		return rating.Aggregate{}, nil, err
	}
	return rating.StoryAggregate(aggregates, direct), rating.StatusFor(direct, readerID), nil
}

// inconsistent логирует нарушение инварианта хранилища и возвращает ошибку вызывающему.
func (s *Service) inconsistent(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrConsistency) {
		s.logger.ErrorContext(ctx, "consistency_violation", slog.String("error", err.Error()))
	}
	return err
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
