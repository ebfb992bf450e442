// Package rating сворачивает оценки читателей в агрегаты глав и историй.
// Агрегаты всегда пересчитываются по текущему набору оценок и нигде не сохраняются.
package rating

import (
	"fmt"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Aggregate - средняя оценка и число учтенных значений.
// Count == 0 означает "оценок пока нет"; это не то же самое, что средняя 0,
// которая невозможна при MinScore = 1.
type Aggregate struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

func (a Aggregate) HasRatings() bool {
	return a.Count > 0
}

func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return domain.Invalid("score", fmt.Sprintf("must be between %d and %d, got %d", MinScore, MaxScore, score))
	}
	return nil
}

// Mean - среднее арифметическое оценок цели.
func Mean(ratings []*domain.Rating) Aggregate {
	if len(ratings) == 0 {
		return Aggregate{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Score
	}
	return Aggregate{Average: float64(sum) / float64(len(ratings)), Count: len(ratings)}
}

// StatusFor возвращает собственную оценку читателя или nil.
// Результат зависит от читателя, его нельзя кэшировать между пользователями.
func StatusFor(ratings []*domain.Rating, readerID string) *int {
	if readerID == "" {
		return nil
	}
	var latest *domain.Rating
	for _, r := range ratings {
		if r.ReaderID != readerID {
			continue
		}
		if latest == nil || r.UpdatedAt.After(latest.UpdatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil
	}
	score := latest.Score
	return &score
}

// StoryAggregate считает оценку истории в два уровня: среднее по средним оценкам глав.
// Главы без оценок пропускаются, а не учитываются как ноль; Count - число оцененных глав.
// Если ни одна глава не оценена, используется среднее оценок, поставленных самой истории.
func StoryAggregate(chapters []Aggregate, direct []*domain.Rating) Aggregate {
	sum, rated := 0.0, 0
	for _, a := range chapters {
		if !a.HasRatings() {
			continue
		}
		sum += a.Average
		rated++
	}
	if rated == 0 {
		return Mean(direct)
	}
	return Aggregate{Average: sum / float64(rated), Count: rated}
}

// CheckUnique проверяет, что у каждого читателя не больше одной оценки на цель.
// Дубликат означает нарушение уникального ограничения в хранилище и не исправляется молча.
func CheckUnique(ratings []*domain.Rating) error {
	type key struct {
		reader     string
		targetType domain.TargetType
		targetID   string
	}
	seen := make(map[key]string, len(ratings))
	for _, r := range ratings {
		k := key{r.ReaderID, r.TargetType, r.TargetID}
		if other, ok := seen[k]; ok {
			return domain.Inconsistent("ratings %s and %s both belong to reader %s on %s %s", other, r.ID, r.ReaderID, r.TargetType, r.TargetID)
		}
		seen[k] = r.ID
	}
	return nil
}
