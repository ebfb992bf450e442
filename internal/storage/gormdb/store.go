// Package gormdb реализует Storage поверх gorm для PostgreSQL и SQLite.
package gormdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UkralStul/serial-fiction-service/internal/domain"
	"github.com/UkralStul/serial-fiction-service/internal/sequencer"
	"github.com/UkralStul/serial-fiction-service/internal/storage"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store реализует интерфейс Storage с использованием gorm.
type Store struct {
	db *gorm.DB
}

// OpenPostgres подключается к PostgreSQL и выполняет миграцию схемы.
func OpenPostgres(dsn string, logLevel logger.LogLevel) (*Store, error) {
	return open(postgres.Open(dsn), logLevel, 0)
}

// OpenSQLite открывает базу SQLite (":memory:" для тестов). SQLite допускает одного
// писателя, поэтому пул ограничен одним соединением.
func OpenSQLite(path string, logLevel logger.LogLevel) (*Store, error) {
	return open(sqlite.Open(path), logLevel, 1)
}

func open(dialector gorm.Dialector, logLevel logger.LogLevel, maxConns int) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if maxConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(maxConns)
	}

	// Выполняем миграцию схемы
	if err := db.AutoMigrate(
		&domain.Story{},
		&domain.StoryGenre{},
		&domain.Chapter{},
		&domain.Rating{},
		&domain.Comment{},
		&domain.ReadingProgress{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// === Story Methods ===

func (s *Store) CreateStory(ctx context.Context, story *domain.Story) (*domain.Story, error) {
	created := *story
	created.ID = uuid.NewString()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&created).Error; err != nil {
			return translate(err, "story", created.ID)
		}
		return replaceGenres(tx, created.ID, created.Genres)
	})
	if err != nil {
		return nil, err
	}
	// GORM заполнит CreatedAt/UpdatedAt при создании
	return &created, nil
}

func (s *Store) GetStoryByID(ctx context.Context, id string) (*domain.Story, error) {
	return loadStory(s.db.WithContext(ctx), id)
}

func (s *Store) UpdateStory(ctx context.Context, story *domain.Story) (*domain.Story, error) {
	var updated *domain.Story
	// Используем транзакцию для атомарности операции чтения-записи
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Story
		if err := tx.First(&existing, "id = ?", story.ID).Error; err != nil {
			return translate(err, "story", story.ID)
		}
		existing.Title = story.Title
		existing.Body = story.Body
		existing.Summary = story.Summary
		existing.EnableCommenting = story.EnableCommenting
		existing.Status = story.Status
		existing.PublishedAt = story.PublishedAt
		if err := tx.Save(&existing).Error; err != nil {
			return translate(err, "story", story.ID)
		}
		if err := replaceGenres(tx, existing.ID, story.Genres); err != nil {
			return err
		}
		existing.Genres = append([]string(nil), story.Genres...)
		updated = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteStory(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story domain.Story
		if err := tx.Select("id").First(&story, "id = ?", id).Error; err != nil {
			return translate(err, "story", id)
		}
		steps := []struct {
			model any
			where string
		}{
			{&domain.Rating{}, "story_id = ?"},
			{&domain.Comment{}, "story_id = ?"},
			{&domain.ReadingProgress{}, "story_id = ?"},
			{&domain.Chapter{}, "story_id = ?"},
			{&domain.StoryGenre{}, "story_id = ?"},
			{&domain.Story{}, "id = ?"},
		}
		for _, step := range steps {
			if err := tx.Where(step.where, id).Delete(step.model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetStories(ctx context.Context, filter storage.StoryFilter, limit, offset int) ([]*domain.Story, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&domain.Story{})
	if filter.AuthorID != "" {
		query = query.Where("author_id = ?", filter.AuthorID)
	}
	if filter.Genre != "" {
		query = query.Where("id IN (?)", db.Model(&domain.StoryGenre{}).Select("story_id").Where("genre = ?", filter.Genre))
	}
	if filter.ReaderID != "" {
		query = query.Where("(status = ? OR author_id = ?)", domain.StatusPublished, filter.ReaderID)
	} else {
		query = query.Where("status = ?", domain.StatusPublished)
	}

	var stories []*domain.Story
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&stories).Error; err != nil {
		return nil, err
	}
	if err := attachGenres(db, stories); err != nil {
		return nil, err
	}
	return stories, nil
}

func loadStory(db *gorm.DB, id string) (*domain.Story, error) {
	var story domain.Story
	if err := db.First(&story, "id = ?", id).Error; err != nil {
		// GORM возвращает gorm.ErrRecordNotFound, если запись не найдена
		return nil, translate(err, "story", id)
	}
	if err := attachGenres(db, []*domain.Story{&story}); err != nil {
		return nil, err
	}
	return &story, nil
}

func replaceGenres(tx *gorm.DB, storyID string, genres []string) error {
	if err := tx.Where("story_id = ?", storyID).Delete(&domain.StoryGenre{}).Error; err != nil {
		return err
	}
	if len(genres) == 0 {
		return nil
	}
	rows := make([]domain.StoryGenre, 0, len(genres))
	for _, g := range genres {
		rows = append(rows, domain.StoryGenre{StoryID: storyID, Genre: g})
	}
	return tx.Create(&rows).Error
}

func attachGenres(db *gorm.DB, stories []*domain.Story) error {
	if len(stories) == 0 {
		return nil
	}
	ids := make([]string, len(stories))
	byID := make(map[string]*domain.Story, len(stories))
	for i, st := range stories {
		ids[i] = st.ID
		byID[st.ID] = st
		st.Genres = []string{}
	}
	var rows []domain.StoryGenre
	if err := db.Where("story_id IN ?", ids).Order("story_id, genre").Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		st := byID[row.StoryID]
		st.Genres = append(st.Genres, row.Genre)
	}
	return nil
}

// === Chapter Methods ===

func (s *Store) CreateChapter(ctx context.Context, chapter *domain.Chapter) (*domain.Chapter, error) {
	created := *chapter
	created.ID = uuid.NewString()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Блокируем строку истории: конкурентные вставки глав в одну историю
		// выполняются по очереди. SQLite блокировку строк не поддерживает, но пишет
		// последовательно; уникальный индекс (story_id, position) страхует оба случая.
		var story domain.Story
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&story, "id = ?", created.StoryID).Error; err != nil {
			return translate(err, "story", created.StoryID)
		}
		var positions []int
		if err := tx.Model(&domain.Chapter{}).Where("story_id = ?", created.StoryID).Pluck("position", &positions).Error; err != nil {
			return err
		}
		created.Position = sequencer.NextPosition(positions)
		if err := tx.Create(&created).Error; err != nil {
			return translate(err, "chapter", created.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetChapterByID(ctx context.Context, id string) (*domain.Chapter, error) {
	var chapter domain.Chapter
	if err := s.db.WithContext(ctx).First(&chapter, "id = ?", id).Error; err != nil {
		return nil, translate(err, "chapter", id)
	}
	return &chapter, nil
}

func (s *Store) UpdateChapter(ctx context.Context, chapter *domain.Chapter) (*domain.Chapter, error) {
	var updated domain.Chapter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, "id = ?", chapter.ID).Error; err != nil {
			return translate(err, "chapter", chapter.ID)
		}
		updated.Title = chapter.Title
		updated.Body = chapter.Body
		updated.EnableCommenting = chapter.EnableCommenting
		updated.Status = chapter.Status
		updated.PublishedAt = chapter.PublishedAt
		return translate(tx.Save(&updated).Error, "chapter", chapter.ID)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteChapter(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chapter domain.Chapter
		if err := tx.Select("id").First(&chapter, "id = ?", id).Error; err != nil {
			return translate(err, "chapter", id)
		}
		if err := tx.Where("target_type = ? AND target_id = ?", domain.TargetChapter, id).Delete(&domain.Rating{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chapter_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.ReadingProgress{}).Where("chapter_id = ?", id).
			Updates(map[string]any{"chapter_id": nil, "position": nil}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Chapter{}).Error
	})
}

func (s *Store) GetChaptersByStoryID(ctx context.Context, storyID string) ([]*domain.Chapter, error) {
	var chapters []*domain.Chapter
	err := s.db.WithContext(ctx).Where("story_id = ?", storyID).Order("position ASC").Find(&chapters).Error
	return chapters, err
}

// === Rating Methods ===

func (s *Store) UpsertRating(ctx context.Context, rating *domain.Rating) (*domain.Rating, error) {
	var stored domain.Rating
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		row := *rating
		row.ID = uuid.NewString()
		row.CreatedAt = now
		row.UpdatedAt = now
		// Последняя запись выигрывает; существующая строка сохраняет id и created_at.
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reader_id"}, {Name: "target_type"}, {Name: "target_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return translate(err, "rating", row.ID)
		}
		return tx.First(&stored, "reader_id = ? AND target_type = ? AND target_id = ?",
			rating.ReaderID, rating.TargetType, rating.TargetID).Error
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	created := *comment
	created.ID = uuid.NewString()
	// Проверяем существование истории и главы в одной транзакции с вставкой
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story domain.Story
		if err := tx.Select("id").First(&story, "id = ?", created.StoryID).Error; err != nil {
			return translate(err, "story", created.StoryID)
		}
		if created.ChapterID != nil {
			var count int64
			if err := tx.Model(&domain.Chapter{}).Where("id = ? AND story_id = ?", *created.ChapterID, created.StoryID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.NotFound("chapter", *created.ChapterID)
			}
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// === Pagination Methods ===

func (s *Store) GetCommentsByTarget(ctx context.Context, targetType domain.TargetType, targetID string, args storage.PaginationArgs) ([]*domain.Comment, error) {
	db := s.db.WithContext(ctx)
	query := db.Order("created_at ASC, id ASC").Limit(args.Limit)
	if targetType == domain.TargetChapter {
		query = query.Where("chapter_id = ?", targetID)
	} else {
		query = query.Where("story_id = ? AND chapter_id IS NULL", targetID)
	}

	// Реализация курсорной пагинации
	if args.Cursor != nil {
		var cursor domain.Comment
		if err := db.First(&cursor, "id = ?", *args.Cursor).Error; err == nil {
			query = query.Where("(created_at > ? OR (created_at = ? AND id > ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
	}

	var comments []*domain.Comment
	err := query.Find(&comments).Error
	return comments, err
}

// === Reading Progress Methods ===

func (s *Store) UpsertReadingProgress(ctx context.Context, progress *domain.ReadingProgress) (*domain.ReadingProgress, error) {
	row := *progress
	row.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story domain.Story
		if err := tx.Select("id").First(&story, "id = ?", row.StoryID).Error; err != nil {
			return translate(err, "story", row.StoryID)
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reader_id"}, {Name: "story_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"chapter_id", "position", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) GetReadingProgress(ctx context.Context, readerID string) ([]*domain.ReadingProgress, error) {
	var res []*domain.ReadingProgress
	err := s.db.WithContext(ctx).Where("reader_id = ?", readerID).Order("updated_at DESC").Find(&res).Error
	return res, err
}

// === Dataloader Method ===

func (s *Store) GetRatingsByTargetIDs(ctx context.Context, targetType domain.TargetType, targetIDs []string) (map[string][]*domain.Rating, error) {
	result := make(map[string][]*domain.Rating, len(targetIDs))
	if len(targetIDs) == 0 {
		return result, nil
	}

	// Загружаем оценки всех целей одним запросом
	var ratings []*domain.Rating
	err := s.db.WithContext(ctx).
		Where("target_type = ? AND target_id IN ?", targetType, targetIDs).
		Order("target_id, created_at ASC").
		Find(&ratings).Error
	if err != nil {
		return nil, err
	}

	for _, r := range ratings {
		result[r.TargetID] = append(result[r.TargetID], r)
	}
	return result, nil
}

// translate приводит ошибки gorm и драйверов к категориям domain.
func translate(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NotFound(entity, id)
	case isUniqueViolation(err):
		return domain.Inconsistent("%s %s violates a unique constraint: %v", entity, id, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
