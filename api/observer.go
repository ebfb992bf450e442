package api

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
	"github.com/UkralStul/serial-fiction-service/internal/rating"
	"github.com/UkralStul/serial-fiction-service/internal/service"
)

// RatingUpdate - событие потока оценок. Не зависит от читателя, поэтому
// одинаково для всех подписчиков и не содержит оценку отправителя.
type RatingUpdate struct {
	TargetType     domain.TargetType `json:"targetType"`
	TargetID       string            `json:"targetId"`
	StoryID        string            `json:"storyId"`
	Aggregate      rating.Aggregate  `json:"aggregate"`
	StoryAggregate rating.Aggregate  `json:"storyAggregate"`
}

func newRatingUpdate(res *service.RatingResult) *RatingUpdate {
	return &RatingUpdate{
		TargetType:     res.TargetType,
		TargetID:       res.TargetID,
		StoryID:        res.StoryID,
		Aggregate:      res.Aggregate,
		StoryAggregate: res.StoryAggregate,
	}
}

// RatingObserver хранит каналы подписчиков на обновления оценок истории.
type RatingObserver struct {
	mu sync.RWMutex
	//          map[storyID] map[subscriberID] channel
	subs map[string]map[string]chan *RatingUpdate
}

// NewRatingObserver - конструктор наблюдателя.
func NewRatingObserver() *RatingObserver {
	return &RatingObserver{
		subs: make(map[string]map[string]chan *RatingUpdate),
	}
}

// Subscribe возвращает канал обновлений истории. Канал закрывается после отмены ctx.
func (o *RatingObserver) Subscribe(ctx context.Context, storyID string) <-chan *RatingUpdate {
	ch := make(chan *RatingUpdate, 1)
	subID := uuid.NewString()

	o.mu.Lock()
	if o.subs[storyID] == nil {
		o.subs[storyID] = make(map[string]chan *RatingUpdate)
	}
	o.subs[storyID][subID] = ch
	o.mu.Unlock()

	// Горутина для очистки при отключении клиента
	go func() {
		<-ctx.Done()
		o.mu.Lock()
		delete(o.subs[storyID], subID)
		if len(o.subs[storyID]) == 0 {
			delete(o.subs, storyID)
		}
		close(ch)
		o.mu.Unlock()
	}()

	return ch
}

// Publish рассылает подписчикам истории агрегаты из результата без статуса читателя.
// Отправка не блокирует: медленный подписчик пропускает обновление и получит следующее.
func (o *RatingObserver) Publish(res *service.RatingResult) {
	update := newRatingUpdate(res)
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ch := range o.subs[update.StoryID] {
		select {
		case ch <- update:
		default:
		}
	}
}

func (o *RatingObserver) subscribers(storyID string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs[storyID])
}
