package domain

import "time"

// PublishStatus - состояние публикации истории или главы.
type PublishStatus string

const (
	StatusDraft     PublishStatus = "draft"
	StatusPublished PublishStatus = "published"
)

// Valid сообщает, является ли значение допустимым статусом.
func (s PublishStatus) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// TargetType - тип сущности, к которой относится оценка или комментарий.
type TargetType string

const (
	TargetStory   TargetType = "story"
	TargetChapter TargetType = "chapter"
)

func (t TargetType) Valid() bool {
	return t == TargetStory || t == TargetChapter
}

// Story представляет историю автора. Главы, оценки и комментарии принадлежат истории
// и удаляются вместе с ней.
type Story struct {
	ID               string        `json:"id" gorm:"type:varchar(36);primaryKey"`
	AuthorID         string        `json:"authorId" gorm:"type:varchar(255);not null;index"`
	Title            string        `json:"title" gorm:"type:varchar(255);not null"`
	Body             string        `json:"body" gorm:"type:text;not null"`
	Summary          string        `json:"summary" gorm:"type:text;not null"`
	EnableCommenting bool          `json:"enableCommenting" gorm:"not null"`
	Status           PublishStatus `json:"status" gorm:"type:varchar(16);not null;default:draft"`
	PublishedAt      *time.Time    `json:"publishedAt"`
	Genres           []string      `json:"genres" gorm:"-"`
	CreatedAt        time.Time     `json:"createdAt" gorm:"not null"`
	UpdatedAt        time.Time     `json:"updatedAt" gorm:"not null"`
}

// Visible сообщает, может ли читатель видеть историю: черновик виден только автору.
func (s *Story) Visible(readerID string) bool {
	return s.Status == StatusPublished || (readerID != "" && s.AuthorID == readerID)
}

// StoryGenre - жанровый тег истории, gorm only.
type StoryGenre struct {
	StoryID string `gorm:"type:varchar(36);primaryKey"`
	Genre   string `gorm:"type:varchar(64);primaryKey;index"`
}

// Chapter - глава истории. Позиция уникальна в пределах истории и не пересчитывается
// при удалении соседних глав.
type Chapter struct {
	ID               string        `json:"id" gorm:"type:varchar(36);primaryKey"`
	StoryID          string        `json:"storyId" gorm:"type:varchar(36);not null;uniqueIndex:idx_chapters_story_position"`
	Position         int           `json:"position" gorm:"not null;uniqueIndex:idx_chapters_story_position"`
	Title            string        `json:"title" gorm:"type:varchar(255);not null"`
	Body             string        `json:"body" gorm:"type:text;not null"`
	EnableCommenting bool          `json:"enableCommenting" gorm:"not null"`
	Status           PublishStatus `json:"status" gorm:"type:varchar(16);not null;default:draft"`
	PublishedAt      *time.Time    `json:"publishedAt"`
	CreatedAt        time.Time     `json:"createdAt" gorm:"not null"`
	UpdatedAt        time.Time     `json:"updatedAt" gorm:"not null"`
}

// Rating - оценка читателя. Пара (ReaderID, TargetType, TargetID) уникальна:
// повторная оценка обновляет существующую запись.
type Rating struct {
	ID         string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	ReaderID   string     `json:"readerId" gorm:"type:varchar(255);not null;uniqueIndex:idx_ratings_reader_target"`
	TargetType TargetType `json:"targetType" gorm:"type:varchar(16);not null;uniqueIndex:idx_ratings_reader_target;index:idx_ratings_target"`
	TargetID   string     `json:"targetId" gorm:"type:varchar(36);not null;uniqueIndex:idx_ratings_reader_target;index:idx_ratings_target"`
	StoryID    string     `json:"storyId" gorm:"type:varchar(36);not null;index"`
	Score      int        `json:"score" gorm:"not null"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"not null"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"not null"`
}

// Comment - комментарий к истории или к главе (если ChapterID задан).
type Comment struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	StoryID   string    `json:"storyId" gorm:"type:varchar(36);not null;index"`
	ChapterID *string   `json:"chapterId,omitempty" gorm:"type:varchar(36);index"`
	AuthorID  string    `json:"authorId" gorm:"type:varchar(255);not null"`
	Body      string    `json:"body" gorm:"type:varchar(2000);not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`
}

// Target возвращает тип и идентификатор сущности, к которой относится комментарий.
func (c *Comment) Target() (TargetType, string) {
	if c.ChapterID != nil {
		return TargetChapter, *c.ChapterID
	}
	return TargetStory, c.StoryID
}

// ReadingProgress - последняя открытая читателем глава истории.
type ReadingProgress struct {
	ReaderID  string    `json:"readerId" gorm:"type:varchar(255);primaryKey"`
	StoryID   string    `json:"storyId" gorm:"type:varchar(36);primaryKey"`
	ChapterID *string   `json:"chapterId,omitempty" gorm:"type:varchar(36)"`
	Position  *int      `json:"position,omitempty"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`
}
