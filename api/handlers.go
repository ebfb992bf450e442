package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
	"github.com/UkralStul/serial-fiction-service/internal/service"
	"github.com/UkralStul/serial-fiction-service/internal/storage"
)

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Invalid("request body", "is not valid JSON: "+err.Error())
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(name, "must be an integer")
	}
	return n, nil
}

// === Stories ===

func (s *Server) listStories(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	q := r.URL.Query()
	views, err := s.svc.ListStories(r.Context(), ReaderFrom(r.Context()), service.StoryFilter{
		AuthorID: q.Get("author"),
		Genre:    q.Get("genre"),
	}, limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) createStory(w http.ResponseWriter, r *http.Request) {
	var in service.StoryInput
	if err := decode(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	view, err := s.svc.CreateStory(r.Context(), ReaderFrom(r.Context()), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) getStory(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetStory(r.Context(), ReaderFrom(r.Context()), chi.URLParam(r, "storyID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) updateStory(w http.ResponseWriter, r *http.Request) {
	var in service.StoryInput
	if err := decode(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	view, err := s.svc.UpdateStory(r.Context(), ReaderFrom(r.Context()), chi.URLParam(r, "storyID"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) deleteStory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteStory(r.Context(), ReaderFrom(r.Context()), chi.URLParam(r, "storyID")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// === Chapters ===

func (s *Server) listChapters(w http.ResponseWriter, r *http.Request) {
	views, err := s.svc.ListChapters(r.Context(), ReaderFrom(r.Context()), chi.URLParam(r, "storyID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) createChapter(w http.ResponseWriter, r *http.Request) {
	var in service.ChapterInput
	if err := decode(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	view, err := s.svc.CreateChapter(r.Context(), ReaderFrom(r.Context()), chi.URLParam(r, "storyID"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) getChapter(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetChapter(r.Context(), ReaderFrom(r.Context()), chi.URLParam(r, "chapterID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) updateChapter(w http.ResponseWriter, r *http.Request) {
	var in service.ChapterInput
	if err := decode(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	view, err := s.svc.UpdateChapter(r.Context(), ReaderFrom(r.Context()), chi.URLParam(r, "chapterID"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) deleteChapter(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteChapter(r.Context(), ReaderFrom(r.Context()), chi.URLParam(r, "chapterID")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) chapterNavigation(w http.ResponseWriter, r *http.Request) {
	nav, err := s.svc.GetChapterNavigation(r.Context(), ReaderFrom(r.Context()), chi.URLParam(r, "chapterID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nav)
}

// === Ratings ===

func (s *Server) submitRating(w http.ResponseWriter, r *http.Request) {
	var in service.RatingInput
	if err := decode(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	in.ReaderID = ReaderFrom(r.Context())

	res, err := s.svc.SubmitRating(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	// Уведомляем подписчиков потока оценок истории
	s.observer.Publish(res)
	writeJSON(w, http.StatusOK, res)
}

// === Comments ===

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	q := r.URL.Query()
	args := storage.PaginationArgs{Limit: limit}
	if cursor := q.Get("cursor"); cursor != "" {
		args.Cursor = &cursor
	}
	page, err := s.svc.ListComments(r.Context(), ReaderFrom(r.Context()),
		domain.TargetType(q.Get("targetType")), q.Get("targetId"), args)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	var in service.CommentInput
	if err := decode(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	comment, err := s.svc.CreateComment(r.Context(), ReaderFrom(r.Context()), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// === Reading Progress ===

func (s *Server) logRead(w http.ResponseWriter, r *http.Request) {
	progress, err := s.svc.LogRead(r.Context(), ReaderFrom(r.Context()), chi.URLParam(r, "chapterID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) readingProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.svc.ReadingProgress(r.Context(), ReaderFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}
