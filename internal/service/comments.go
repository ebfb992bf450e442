package service

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
	"github.com/UkralStul/serial-fiction-service/internal/sanitizer"
	"github.com/UkralStul/serial-fiction-service/internal/storage"
)

const maxCommentLength = 2000

// CommentInput - новый комментарий к истории или главе.
type CommentInput struct {
	TargetType domain.TargetType `json:"targetType"`
	TargetID   string            `json:"targetId"`
	Body       string            `json:"body"`
}

// CommentPage - страница комментариев с курсором на последний элемент.
type CommentPage struct {
	Comments    []*domain.Comment `json:"comments"`
	HasNextPage bool              `json:"hasNextPage"`
	EndCursor   *string           `json:"endCursor"`
}

// === Comments ===

func (s *Service) CreateComment(ctx context.Context, actorID string, in CommentInput) (*domain.Comment, error) {
	if actorID == "" {
		return nil, domain.Forbidden("anonymous readers cannot comment")
	}
	body := sanitizer.Sanitize(in.Body)
	if body == "" {
		return nil, domain.Invalid("body", "is required")
	}
	if utf8.RuneCountInString(body) > maxCommentLength {
		return nil, domain.Invalid("body", "exceeds 2000 characters")
	}

	t, err := s.resolveTarget(ctx, actorID, in.TargetType, in.TargetID)
	if err != nil {
		return nil, err
	}
	if !t.commentingEnabled() {
		return nil, domain.Forbidden("comments are disabled for this " + string(in.TargetType))
	}

	comment, err := s.store.CreateComment(ctx, &domain.Comment{
		StoryID:   t.story.ID,
		ChapterID: t.chapterID(),
		AuthorID:  actorID,
		Body:      body,
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "comment_created",
		slog.String("comment_id", comment.ID),
		slog.String("target_type", string(in.TargetType)),
		slog.String("target_id", in.TargetID),
	)
	return comment, nil
}

// ListComments возвращает комментарии цели по курсору, старые первыми.
func (s *Service) ListComments(ctx context.Context, readerID string, targetType domain.TargetType, targetID string, args storage.PaginationArgs) (*CommentPage, error) {
	if _, err := s.resolveTarget(ctx, readerID, targetType, targetID); err != nil {
		return nil, err
	}
	limit := normalizeLimit(args.Limit)

	// Запрашиваем на один элемент больше, чтобы определить, есть ли следующая страница
	comments, err := s.store.GetCommentsByTarget(ctx, targetType, targetID, storage.PaginationArgs{Limit: limit + 1, Cursor: args.Cursor})
	if err != nil {
		return nil, err
	}

	page := &CommentPage{HasNextPage: len(comments) > limit}
	if page.HasNextPage {
		comments = comments[:limit]
	}
	if comments == nil {
		comments = []*domain.Comment{}
	}
	page.Comments = comments
	if len(comments) > 0 {
		endCursor := comments[len(comments)-1].ID
		page.EndCursor = &endCursor
	}
	return page, nil
}

// === Reading Progress ===

// LogRead запоминает главу, которую читатель открыл последней.
func (s *Service) LogRead(ctx context.Context, readerID, chapterID string) (*domain.ReadingProgress, error) {
	if readerID == "" {
		return nil, domain.Forbidden("reading progress requires an identified reader")
	}
	story, chapter, err := s.loadVisibleChapter(ctx, readerID, chapterID)
	if err != nil {
		return nil, err
	}
	id, position := chapter.ID, chapter.Position
	return s.store.UpsertReadingProgress(ctx, &domain.ReadingProgress{
		ReaderID:  readerID,
		StoryID:   story.ID,
		ChapterID: &id,
		Position:  &position,
	})
}

func (s *Service) ReadingProgress(ctx context.Context, readerID string) ([]*domain.ReadingProgress, error) {
	if readerID == "" {
		return nil, domain.Forbidden("reading progress requires an identified reader")
	}
	return s.store.GetReadingProgress(ctx, readerID)
}
