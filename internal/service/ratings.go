package service

import (
	"context"
	"log/slog"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
	"github.com/UkralStul/serial-fiction-service/internal/rating"
)

// RatingInput - оценка читателя для истории или главы.
type RatingInput struct {
	TargetType domain.TargetType `json:"targetType"`
	TargetID   string            `json:"targetId"`
	ReaderID   string            `json:"-"`
	Score      int               `json:"score"`
}

// RatingResult - пересчитанные агрегаты после сохранения оценки.
type RatingResult struct {
	TargetType     domain.TargetType `json:"targetType"`
	TargetID       string            `json:"targetId"`
	StoryID        string            `json:"storyId"`
	Aggregate      rating.Aggregate  `json:"aggregate"`
	ReaderStatus   *int              `json:"readerStatus"`
	StoryAggregate rating.Aggregate  `json:"storyAggregate"`
}

// target - разрешенная цель оценки или комментария. chapter == nil для истории.
type target struct {
	story   *domain.Story
	chapter *domain.Chapter
}

func (t target) commentingEnabled() bool {
	if t.chapter != nil {
		return t.chapter.EnableCommenting
	}
	return t.story.EnableCommenting
}

func (t target) chapterID() *string {
	if t.chapter == nil {
		return nil
	}
	id := t.chapter.ID
	return &id
}

// resolveTarget загружает видимую читателю цель; невидимая цель неотличима от отсутствующей.
func (s *Service) resolveTarget(ctx context.Context, readerID string, targetType domain.TargetType, targetID string) (target, error) {
	switch targetType {
	case domain.TargetStory:
		story, err := s.loadVisibleStory(ctx, readerID, targetID)
		if err != nil {
			return target{}, err
		}
		return target{story: story}, nil
	case domain.TargetChapter:
		story, chapter, err := s.loadVisibleChapter(ctx, readerID, targetID)
		if err != nil {
			return target{}, err
		}
		return target{story: story, chapter: chapter}, nil
	}
	return target{}, domain.Invalid("targetType", "must be story or chapter")
}

// SubmitRating создает или обновляет оценку читателя и возвращает пересчитанные агрегаты.
// Оценка вне диапазона отклоняется до любого чтения или записи.
func (s *Service) SubmitRating(ctx context.Context, in RatingInput) (*RatingResult, error) {
	if err := rating.ValidateScore(in.Score); err != nil {
		return nil, err
	}
	if !in.TargetType.Valid() {
		return nil, domain.Invalid("targetType", "must be story or chapter")
	}
	if in.ReaderID == "" {
		return nil, domain.Forbidden("rating requires an identified reader")
	}

	t, err := s.resolveTarget(ctx, in.ReaderID, in.TargetType, in.TargetID)
	if err != nil {
		return nil, err
	}
	if !t.commentingEnabled() {
		return nil, domain.Forbidden("ratings are disabled for this " + string(in.TargetType))
	}

	stored, err := s.store.UpsertRating(ctx, &domain.Rating{
		ReaderID:   in.ReaderID,
		TargetType: in.TargetType,
		TargetID:   in.TargetID,
		StoryID:    t.story.ID,
		Score:      in.Score,
	})
	if err != nil {
		return nil, s.inconsistent(ctx, err)
	}

	ratings, err := s.ratingsFor(ctx, in.TargetType, in.TargetID)
	if err != nil {
		return nil, err
	}
	chapters, err := s.store.GetChaptersByStoryID(ctx, t.story.ID)
	if err != nil {
		return nil, err
	}
	storyScore, _, err := s.storyScore(ctx, t.story, chapters, in.ReaderID)
	if err != nil {
		return nil, err
	}

	res := &RatingResult{
		TargetType:     in.TargetType,
		TargetID:       in.TargetID,
		StoryID:        t.story.ID,
		Aggregate:      rating.Mean(ratings),
		ReaderStatus:   rating.StatusFor(ratings, in.ReaderID),
		StoryAggregate: storyScore,
	}
	// Агрегат истории всегда двухуровневый, даже если оценивали ее напрямую
	if t.chapter == nil {
		res.Aggregate = storyScore
	}
	s.logger.InfoContext(ctx, "rating_submitted",
		slog.String("rating_id", stored.ID),
		slog.String("target_type", string(in.TargetType)),
		slog.String("target_id", in.TargetID),
		slog.Int("score", in.Score),
		slog.Float64("average", res.Aggregate.Average),
		slog.Int("count", res.Aggregate.Count),
	)
	return res, nil
}
