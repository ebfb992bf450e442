// Package sequencer задает порядок глав внутри истории и вычисляет навигацию
// "предыдущая/следующая". Позиции стабильны: удаление главы не перенумеровывает
// остальные, пропуски допустимы. Перестановка глав не поддерживается.
package sequencer

import (
	"sort"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
)

// Navigation - соседние главы в порядке чтения.
type Navigation struct {
	PreviousID *string `json:"previousId"`
	NextID     *string `json:"nextId"`
}

// NextPosition возвращает позицию для новой главы: max+1 или 1, если глав нет.
// Хранилище вызывает ее под той же блокировкой/транзакцией, что и вставку.
func NextPosition(existing []int) int {
	maxPos := 0
	for _, p := range existing {
		if p > maxPos {
			maxPos = p
		}
	}
	return maxPos + 1
}

// Sort упорядочивает главы по позиции.
func Sort(chapters []*domain.Chapter) {
	sort.Slice(chapters, func(i, j int) bool {
		return chapters[i].Position < chapters[j].Position
	})
}

// PreviousOf - глава той же истории с наибольшей позицией меньше текущей.
func PreviousOf(chapters []*domain.Chapter, current *domain.Chapter) *domain.Chapter {
	var prev *domain.Chapter
	for _, c := range chapters {
		if c.StoryID != current.StoryID || c.Position >= current.Position {
			continue
		}
		if prev == nil || c.Position > prev.Position {
			prev = c
		}
	}
	return prev
}

// NextOf - глава той же истории с наименьшей позицией больше текущей.
func NextOf(chapters []*domain.Chapter, current *domain.Chapter) *domain.Chapter {
	var next *domain.Chapter
	for _, c := range chapters {
		if c.StoryID != current.StoryID || c.Position <= current.Position {
			continue
		}
		if next == nil || c.Position < next.Position {
			next = c
		}
	}
	return next
}

func Navigate(chapters []*domain.Chapter, current *domain.Chapter) Navigation {
	var nav Navigation
	if prev := PreviousOf(chapters, current); prev != nil {
		id := prev.ID
		nav.PreviousID = &id
	}
	if next := NextOf(chapters, current); next != nil {
		id := next.ID
		nav.NextID = &id
	}
	return nav
}

// Validate проверяет строгий порядок: позиции положительны и не повторяются в пределах истории.
// Нарушение означает ошибку в уникальном ограничении хранилища.
func Validate(chapters []*domain.Chapter) error {
	seen := make(map[string]map[int]string, 1)
	for _, c := range chapters {
		if c.Position <= 0 {
			return domain.Inconsistent("chapter %s has non-positive position %d", c.ID, c.Position)
		}
		byPos, ok := seen[c.StoryID]
		if !ok {
			byPos = make(map[int]string)
			seen[c.StoryID] = byPos
		}
		if other, dup := byPos[c.Position]; dup {
			return domain.Inconsistent("chapters %s and %s share position %d in story %s", other, c.ID, c.Position, c.StoryID)
		}
		byPos[c.Position] = c.ID
	}
	return nil
}
