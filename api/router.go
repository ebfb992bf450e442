// Package api - HTTP-транспорт сервиса: JSON поверх chi, конверт ошибок в стиле GraphQL
// и websocket-поток обновлений оценок.
package api

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/UkralStul/serial-fiction-service/internal/dataloader"
	"github.com/UkralStul/serial-fiction-service/internal/ratelimit"
	"github.com/UkralStul/serial-fiction-service/internal/service"
	"github.com/UkralStul/serial-fiction-service/internal/storage"
)

// Deps - зависимости транспорта. Limiter == nil отключает ограничение частоты оценок.
type Deps struct {
	Service  *service.Service
	Store    storage.Storage
	Auth     *Authenticator
	Limiter  ratelimit.Limiter
	Observer *RatingObserver
	Logger   *slog.Logger
}

// Server содержит все зависимости, которые нужны обработчикам.
type Server struct {
	svc      *service.Service
	observer *RatingObserver
	limiter  ratelimit.Limiter
	logger   *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Observer == nil {
		d.Observer = NewRatingObserver()
	}
	if d.Auth == nil {
		d.Auth = NewAuthenticator("")
	}
	s := &Server{svc: d.Service, observer: d.Observer, limiter: d.Limiter, logger: d.Logger}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(d.Auth.Middleware)
	router.Use(dataloader.Middleware(d.Store))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/stories", func(r chi.Router) {
		r.Get("/", s.listStories)
		r.Post("/", s.createStory)
		r.Route("/{storyID}", func(r chi.Router) {
			r.Get("/", s.getStory)
			r.Patch("/", s.updateStory)
			r.Delete("/", s.deleteStory)
			r.Get("/chapters", s.listChapters)
			r.Post("/chapters", s.createChapter)
			r.Get("/ratings/live", s.liveRatings)
		})
	})

	router.Route("/chapters/{chapterID}", func(r chi.Router) {
		r.Get("/", s.getChapter)
		r.Patch("/", s.updateChapter)
		r.Delete("/", s.deleteChapter)
		r.Get("/navigation", s.chapterNavigation)
		r.Post("/reads", s.logRead)
	})

	router.With(s.rateLimit).Post("/ratings", s.submitRating)
	router.Get("/comments", s.listComments)
	router.Post("/comments", s.createComment)
	router.Get("/me/reading", s.readingProgress)

	return router
}

// rateLimit ограничивает число оценок от одного читателя. Анонимные запросы пропускаются:
// сервис все равно отклонит их. Недоступный лимитер не блокирует оценивание.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		readerID := ReaderFrom(r.Context())
		if readerID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ok, retry, err := s.limiter.Allow(r.Context(), "ratings:"+readerID)
		if err != nil {
			s.logger.WarnContext(r.Context(), "rate_limiter_unavailable", slog.String("error", err.Error()))
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED",
				fmt.Errorf("too many ratings, retry in %s", retry.Round(time.Second)))
			return
		}
		next.ServeHTTP(w, r)
	})
}
