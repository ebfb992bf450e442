package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
	"github.com/UkralStul/serial-fiction-service/internal/service"
)

func ptr[T any](v T) *T { return &v }

// fillWithMockData заполняет хранилище демонстрационными данными через сервис,
// так что к ним применяются те же правила очистки и публикации.
func fillWithMockData(ctx context.Context, svc *service.Service, log *slog.Logger) error {
	// 1. Опубликованная история с двумя главами
	story, err := svc.CreateStory(ctx, "user-1", service.StoryInput{
		Title:   ptr("Хроники старого маяка"),
		Summary: ptr("<p>Смотритель маяка находит дневник предшественника.</p>"),
		Body:    ptr("<p>Пролог. Ночь, шторм и свет, который не гаснет.</p>"),
		Status:  ptr(domain.StatusPublished),
		Genres:  []string{"Mystery", "Drama"},
	})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create story: %w", err)
	}

	var chapterIDs []string
	for i, title := range []string{"Глава 1. Дневник", "Глава 2. Второй смотритель"} {
		ch, err := svc.CreateChapter(ctx, "user-1", story.ID, service.ChapterInput{
			Title:  ptr(title),
			Body:   ptr(fmt.Sprintf("<p>Текст главы %d.</p>", i+1)),
			Status: ptr(domain.StatusPublished),
		})
		if err != nil {
			return fmt.Errorf("fillWithMockData: failed to create chapter %d: %w", i+1, err)
		}
		chapterIDs = append(chapterIDs, ch.ID)
	}

	// 2. Черновик третьей главы виден только автору
	if _, err := svc.CreateChapter(ctx, "user-1", story.ID, service.ChapterInput{
		Title: ptr("Глава 3. Черновик"),
		Body:  ptr("<p>Еще не готово.</p>"),
	}); err != nil {
		return fmt.Errorf("fillWithMockData: failed to create draft chapter: %w", err)
	}

	// 3. Оценки и комментарий читателей
	ratings := []service.RatingInput{
		{TargetType: domain.TargetChapter, TargetID: chapterIDs[0], ReaderID: "user-2", Score: 5},
		{TargetType: domain.TargetChapter, TargetID: chapterIDs[0], ReaderID: "user-3", Score: 4},
		{TargetType: domain.TargetChapter, TargetID: chapterIDs[1], ReaderID: "user-2", Score: 4},
	}
	for _, in := range ratings {
		if _, err := svc.SubmitRating(ctx, in); err != nil {
			return fmt.Errorf("fillWithMockData: failed to rate: %w", err)
		}
	}
	if _, err := svc.CreateComment(ctx, "user-2", service.CommentInput{
		TargetType: domain.TargetChapter,
		TargetID:   chapterIDs[0],
		Body:       "Отличное начало! Жду продолжения.",
	}); err != nil {
		return fmt.Errorf("fillWithMockData: failed to create comment: %w", err)
	}

	// 4. История с выключенными комментариями и оценками
	closed, err := svc.CreateStory(ctx, "user-admin", service.StoryInput{
		Title:            ptr("Правила сообщества"),
		Body:             ptr("<p>К этой истории нельзя оставлять комментарии.</p>"),
		EnableCommenting: ptr(false),
		Status:           ptr(domain.StatusPublished),
	})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create closed story: %w", err)
	}

	log.Info("mock data filled",
		slog.String("story_id", story.ID),
		slog.String("closed_story_id", closed.ID),
	)
	return nil
}
