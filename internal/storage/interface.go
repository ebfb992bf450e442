package storage

import (
	"context"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
)

// PaginationArgs - аргументы для курсорной пагинации.
type PaginationArgs struct {
	Limit  int
	Cursor *string
}

// StoryFilter - фильтр списка историй. Пустые поля не ограничивают выборку.
// Черновики попадают в выборку только для их автора (ReaderID).
type StoryFilter struct {
	AuthorID string
	Genre    string
	ReaderID string
}

// Storage определяет контракт для хранилищ.
// Отсутствующие записи возвращаются как domain.ErrNotFound, нарушения уникальности -
// как domain.ErrConsistency.
type Storage interface {
	CreateStory(ctx context.Context, story *domain.Story) (*domain.Story, error)
	GetStoryByID(ctx context.Context, id string) (*domain.Story, error)
	UpdateStory(ctx context.Context, story *domain.Story) (*domain.Story, error)
	// DeleteStory каскадно удаляет главы, оценки, комментарии и прогресс чтения.
	DeleteStory(ctx context.Context, id string) error
	GetStories(ctx context.Context, filter StoryFilter, limit, offset int) ([]*domain.Story, error)

	// CreateChapter назначает позицию (sequencer.NextPosition) атомарно со вставкой.
	CreateChapter(ctx context.Context, chapter *domain.Chapter) (*domain.Chapter, error)
	GetChapterByID(ctx context.Context, id string) (*domain.Chapter, error)
	UpdateChapter(ctx context.Context, chapter *domain.Chapter) (*domain.Chapter, error)
	// DeleteChapter удаляет главу с ее оценками и комментариями, позиции соседей не меняются.
	DeleteChapter(ctx context.Context, id string) error
	GetChaptersByStoryID(ctx context.Context, storyID string) ([]*domain.Chapter, error)

	// UpsertRating создает оценку или обновляет существующую для (reader, target),
	// сохраняя ее идентификатор. Возвращает сохраненную запись.
	UpsertRating(ctx context.Context, rating *domain.Rating) (*domain.Rating, error)

	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	GetCommentsByTarget(ctx context.Context, targetType domain.TargetType, targetID string, args PaginationArgs) ([]*domain.Comment, error)

	UpsertReadingProgress(ctx context.Context, progress *domain.ReadingProgress) (*domain.ReadingProgress, error)
	GetReadingProgress(ctx context.Context, readerID string) ([]*domain.ReadingProgress, error)

	// Методы для Dataloader'ов
	GetRatingsByTargetIDs(ctx context.Context, targetType domain.TargetType, targetIDs []string) (map[string][]*domain.Rating, error)
}
