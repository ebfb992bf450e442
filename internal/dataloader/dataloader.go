package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
	"github.com/UkralStul/serial-fiction-service/internal/storage"

	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	RatingsByChapterID *dataloader.Loader
	RatingsByStoryID   *dataloader.Loader
}

// NewLoaders создает лоадеры оценок поверх хранилища. Кэш отключен: запрос может
// записать оценку и сразу перечитать агрегат, лоадер нужен только для батчинга.
func NewLoaders(store storage.Storage) *Loaders {
	return &Loaders{
		RatingsByChapterID: newRatingsLoader(store, domain.TargetChapter),
		RatingsByStoryID:   newRatingsLoader(store, domain.TargetStory),
	}
}

func newRatingsLoader(store storage.Storage, targetType domain.TargetType) *dataloader.Loader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		targetIDs := keys.Keys()

		// Вызываем метод хранилища, который делает ОДИН запрос к БД
		ratingsMap, err := store.GetRatingsByTargetIDs(ctx, targetType, targetIDs)
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			// В случае ошибки, возвращаем ее для всех ключей
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Формируем результат в том же порядке, что и ключи
		for i, id := range targetIDs {
			results[i] = &dataloader.Result{Data: ratingsMap[id]}
		}
		return results
	}

	return dataloader.NewBatchedLoader(batchFn,
		dataloader.WithWait(time.Millisecond*1),
		dataloader.WithCache(&dataloader.NoCache{}),
	)
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithLoaders(r.Context(), NewLoaders(store))))
		})
	}
}

// WithLoaders помещает лоадеры в контекст.
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, key, loaders)
}

// For извлекает лоадеры из контекста. Возвращает nil, если их там нет.
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(key).(*Loaders)
	return loaders
}

// LoadRatings возвращает оценки цели через соответствующий лоадер.
func (l *Loaders) LoadRatings(ctx context.Context, targetType domain.TargetType, targetID string) ([]*domain.Rating, error) {
	loader := l.RatingsByStoryID
	if targetType == domain.TargetChapter {
		loader = l.RatingsByChapterID
	}
	data, err := loader.Load(ctx, dataloader.StringKey(targetID))()
	if err != nil {
		return nil, err
	}
	ratings, _ := data.([]*domain.Rating)
	return ratings, nil
}

// LoadManyRatings загружает оценки нескольких целей одним батчем, сохраняя порядок ids.
func (l *Loaders) LoadManyRatings(ctx context.Context, targetType domain.TargetType, targetIDs []string) ([][]*domain.Rating, error) {
	loader := l.RatingsByStoryID
	if targetType == domain.TargetChapter {
		loader = l.RatingsByChapterID
	}
	data, errs := loader.LoadMany(ctx, dataloader.NewKeysFromStrings(targetIDs))()
	res := make([][]*domain.Rating, len(targetIDs))
	for i := range targetIDs {
		if len(errs) > i && errs[i] != nil {
			return nil, errs[i]
		}
		res[i], _ = data[i].([]*domain.Rating)
	}
	return res, nil
}
