package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
	"github.com/UkralStul/serial-fiction-service/internal/sequencer"
	"github.com/UkralStul/serial-fiction-service/internal/storage"
	"github.com/google/uuid"
)

type ratingKey struct {
	readerID   string
	targetType domain.TargetType
	targetID   string
}

type targetKey struct {
	targetType domain.TargetType
	targetID   string
}

type progressKey struct {
	readerID string
	storyID  string
}

// Store реализует интерфейс Storage в памяти.
// Наружу отдаются только копии, поэтому изменения вне хранилища не видны без Update*.
type Store struct {
	mu               sync.RWMutex
	stories          map[string]*domain.Story
	chapters         map[string]*domain.Chapter
	chaptersByStory  map[string][]string // map[storyID][]chapterID
	ratings          map[string]*domain.Rating
	ratingIndex      map[ratingKey]string // уникальность (reader, target)
	comments         map[string]*domain.Comment
	commentsByTarget map[targetKey][]string
	progress         map[progressKey]*domain.ReadingProgress
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		stories:          make(map[string]*domain.Story),
		chapters:         make(map[string]*domain.Chapter),
		chaptersByStory:  make(map[string][]string),
		ratings:          make(map[string]*domain.Rating),
		ratingIndex:      make(map[ratingKey]string),
		comments:         make(map[string]*domain.Comment),
		commentsByTarget: make(map[targetKey][]string),
		progress:         make(map[progressKey]*domain.ReadingProgress),
	}
}

// === Story Methods ===

func (s *Store) CreateStory(ctx context.Context, story *domain.Story) (*domain.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := cloneStory(story)
	stored.ID = uuid.NewString()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.stories[stored.ID] = stored
	return cloneStory(stored), nil
}

func (s *Store) GetStoryByID(ctx context.Context, id string) (*domain.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	story, ok := s.stories[id]
	if !ok {
		return nil, domain.NotFound("story", id)
	}
	return cloneStory(story), nil
}

func (s *Store) UpdateStory(ctx context.Context, story *domain.Story) (*domain.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.stories[story.ID]
	if !ok {
		return nil, domain.NotFound("story", story.ID)
	}
	stored := cloneStory(story)
	stored.AuthorID = existing.AuthorID
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	s.stories[stored.ID] = stored
	return cloneStory(stored), nil
}

func (s *Store) DeleteStory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stories[id]; !ok {
		return domain.NotFound("story", id)
	}
	for _, chapterID := range s.chaptersByStory[id] {
		s.deleteChapterLocked(chapterID)
	}
	delete(s.chaptersByStory, id)
	s.deleteRatingsLocked(domain.TargetStory, id)
	s.deleteCommentsLocked(domain.TargetStory, id)
	for k := range s.progress {
		if k.storyID == id {
			delete(s.progress, k)
		}
	}
	delete(s.stories, id)
	return nil
}

func (s *Store) GetStories(ctx context.Context, filter storage.StoryFilter, limit, offset int) ([]*domain.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.Story, 0, len(s.stories))
	for _, st := range s.stories {
		if filter.AuthorID != "" && st.AuthorID != filter.AuthorID {
			continue
		}
		if filter.Genre != "" && !hasGenre(st, filter.Genre) {
			continue
		}
		if !st.Visible(filter.ReaderID) {
			continue
		}
		all = append(all, st)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := offset
	if start >= len(all) {
		return []*domain.Story{}, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	res := make([]*domain.Story, 0, end-start)
	for _, st := range all[start:end] {
		res = append(res, cloneStory(st))
	}
	return res, nil
}

// === Chapter Methods ===

func (s *Store) CreateChapter(ctx context.Context, chapter *domain.Chapter) (*domain.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stories[chapter.StoryID]; !ok {
		return nil, domain.NotFound("story", chapter.StoryID)
	}

	// Позиция вычисляется под той же блокировкой, что и вставка.
	ids := s.chaptersByStory[chapter.StoryID]
	positions := make([]int, 0, len(ids))
	for _, id := range ids {
		positions = append(positions, s.chapters[id].Position)
	}

	now := time.Now().UTC()
	stored := cloneChapter(chapter)
	stored.ID = uuid.NewString()
	stored.Position = sequencer.NextPosition(positions)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.chapters[stored.ID] = stored
	s.chaptersByStory[stored.StoryID] = append(ids, stored.ID)
	return cloneChapter(stored), nil
}

func (s *Store) GetChapterByID(ctx context.Context, id string) (*domain.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chapter, ok := s.chapters[id]
	if !ok {
		return nil, domain.NotFound("chapter", id)
	}
	return cloneChapter(chapter), nil
}

func (s *Store) UpdateChapter(ctx context.Context, chapter *domain.Chapter) (*domain.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.chapters[chapter.ID]
	if !ok {
		return nil, domain.NotFound("chapter", chapter.ID)
	}
	stored := cloneChapter(chapter)
	// История и позиция главы не меняются через обновление.
	stored.StoryID = existing.StoryID
	stored.Position = existing.Position
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	s.chapters[stored.ID] = stored
	return cloneChapter(stored), nil
}

func (s *Store) DeleteChapter(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chapter, ok := s.chapters[id]
	if !ok {
		return domain.NotFound("chapter", id)
	}
	ids := s.chaptersByStory[chapter.StoryID]
	for i := range ids {
		if ids[i] == id {
			s.chaptersByStory[chapter.StoryID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	s.deleteChapterLocked(id)
	return nil
}

func (s *Store) GetChaptersByStoryID(ctx context.Context, storyID string) ([]*domain.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.chaptersByStory[storyID]
	res := make([]*domain.Chapter, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.chapters[id]; ok {
			res = append(res, cloneChapter(c))
		}
	}
	sequencer.Sort(res)
	return res, nil
}

// deleteChapterLocked удаляет главу и все, что к ней относится. Индекс chaptersByStory
// обновляет вызывающий код.
func (s *Store) deleteChapterLocked(id string) {
	s.deleteRatingsLocked(domain.TargetChapter, id)
	s.deleteCommentsLocked(domain.TargetChapter, id)
	for k, p := range s.progress {
		if p.ChapterID != nil && *p.ChapterID == id {
			p.ChapterID = nil
			p.Position = nil
			s.progress[k] = p
		}
	}
	delete(s.chapters, id)
}

// === Rating Methods ===

func (s *Store) UpsertRating(ctx context.Context, rating *domain.Rating) (*domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := ratingKey{rating.ReaderID, rating.TargetType, rating.TargetID}
	if id, ok := s.ratingIndex[key]; ok {
		existing := s.ratings[id]
		existing.Score = rating.Score
		existing.UpdatedAt = now
		return cloneRating(existing), nil
	}

	stored := cloneRating(rating)
	stored.ID = uuid.NewString()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.ratings[stored.ID] = stored
	s.ratingIndex[key] = stored.ID
	return cloneRating(stored), nil
}

func (s *Store) deleteRatingsLocked(targetType domain.TargetType, targetID string) {
	for key, id := range s.ratingIndex {
		if key.targetType == targetType && key.targetID == targetID {
			delete(s.ratings, id)
			delete(s.ratingIndex, key)
		}
	}
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stories[comment.StoryID]; !ok {
		return nil, domain.NotFound("story", comment.StoryID)
	}
	if comment.ChapterID != nil {
		ch, ok := s.chapters[*comment.ChapterID]
		if !ok || ch.StoryID != comment.StoryID {
			return nil, domain.NotFound("chapter", *comment.ChapterID)
		}
	}

	now := time.Now().UTC()
	stored := cloneComment(comment)
	stored.ID = uuid.NewString()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.comments[stored.ID] = stored

	targetType, targetID := stored.Target()
	key := targetKey{targetType, targetID}
	s.commentsByTarget[key] = append(s.commentsByTarget[key], stored.ID)
	return cloneComment(stored), nil
}

func (s *Store) GetCommentsByTarget(ctx context.Context, targetType domain.TargetType, targetID string, args storage.PaginationArgs) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.commentsByTarget[targetKey{targetType, targetID}]
	if !ok {
		return []*domain.Comment{}, nil
	}
	return s.paginateComments(ids, args), nil
}

// paginateComments - вспомогательная функция для пагинации
func (s *Store) paginateComments(ids []string, args storage.PaginationArgs) []*domain.Comment {
	all := make([]*domain.Comment, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.comments[id]; ok {
			all = append(all, c)
		}
	}
	// Сортируем по времени создания, чтобы пагинация была консистентной
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	start := 0
	if args.Cursor != nil {
		for i, c := range all {
			if c.ID == *args.Cursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(all) {
		return []*domain.Comment{}
	}
	end := start + args.Limit
	if end > len(all) {
		end = len(all)
	}

	res := make([]*domain.Comment, 0, end-start)
	for _, c := range all[start:end] {
		res = append(res, cloneComment(c))
	}
	return res
}

func (s *Store) deleteCommentsLocked(targetType domain.TargetType, targetID string) {
	key := targetKey{targetType, targetID}
	for _, id := range s.commentsByTarget[key] {
		delete(s.comments, id)
	}
	delete(s.commentsByTarget, key)
}

// === Reading Progress Methods ===

func (s *Store) UpsertReadingProgress(ctx context.Context, progress *domain.ReadingProgress) (*domain.ReadingProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stories[progress.StoryID]; !ok {
		return nil, domain.NotFound("story", progress.StoryID)
	}
	stored := cloneProgress(progress)
	stored.UpdatedAt = time.Now().UTC()
	s.progress[progressKey{stored.ReaderID, stored.StoryID}] = stored
	return cloneProgress(stored), nil
}

func (s *Store) GetReadingProgress(ctx context.Context, readerID string) ([]*domain.ReadingProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*domain.ReadingProgress, 0)
	for k, p := range s.progress {
		if k.readerID == readerID {
			res = append(res, cloneProgress(p))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UpdatedAt.After(res[j].UpdatedAt) })
	return res, nil
}

// === Dataloader Methods ===

func (s *Store) GetRatingsByTargetIDs(ctx context.Context, targetType domain.TargetType, targetIDs []string) (map[string][]*domain.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(targetIDs))
	for _, id := range targetIDs {
		wanted[id] = struct{}{}
	}

	results := make(map[string][]*domain.Rating, len(targetIDs))
	for _, r := range s.ratings {
		if r.TargetType != targetType {
			continue
		}
		if _, ok := wanted[r.TargetID]; !ok {
			continue
		}
		results[r.TargetID] = append(results[r.TargetID], cloneRating(r))
	}
	for id := range results {
		list := results[id]
		sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	}
	return results, nil
}

func hasGenre(st *domain.Story, genre string) bool {
	for _, g := range st.Genres {
		if g == genre {
			return true
		}
	}
	return false
}
