package domain

import "time"

// PostStatus - жизненный цикл поста.
type PostStatus string

const (
	PostStatusDraft         PostStatus = "draft"
	PostStatusPendingReview PostStatus = "pending_review"
	PostStatusApproved      PostStatus = "approved"
	PostStatusRejected      PostStatus = "rejected"
	PostStatusDisabled      PostStatus = "disabled"
)

// Valid сообщает, является ли статус одним из известных значений.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPendingReview, PostStatusApproved, PostStatusRejected, PostStatusDisabled:
		return true
	}
	return false
}

// EntityStatus - статус справочников (категории, языки) и пользователей.
type EntityStatus string

const (
	StatusActive   EntityStatus = "active"
	StatusDisabled EntityStatus = "disabled"
)

// User - автор постов и комментариев. Движок только читает пользователей.
type User struct {
	ID          int64        `json:"id" gorm:"primaryKey"`
	DisplayName string       `json:"displayName" gorm:"type:varchar(255);not null;index"`
	AvatarURL   string       `json:"avatarUrl,omitempty" gorm:"type:varchar(512)"`
	Status      EntityStatus `json:"-" gorm:"type:varchar(16);not null;default:active"`
}

// Language - язык поста.
type Language struct {
	ID     int64        `json:"id" gorm:"primaryKey"`
	Locale string       `json:"locale" gorm:"type:varchar(16);uniqueIndex;not null"`
	Name   string       `json:"name" gorm:"type:varchar(64);uniqueIndex;not null"`
	Status EntityStatus `json:"-" gorm:"type:varchar(16);not null;default:active"`
}

// Category - категория поста. Выключенная категория при поиске ведет себя как отсутствующая.
type Category struct {
	ID     int64        `json:"id" gorm:"primaryKey"`
	Name   string       `json:"name" gorm:"type:varchar(128);uniqueIndex;not null"`
	Status EntityStatus `json:"-" gorm:"type:varchar(16);not null;default:active"`
}

// Post представляет пост в системе.
// OriginalID указывает на оригинал, если пост является переводом.
type Post struct {
	ID         int64      `json:"id" gorm:"primaryKey"`
	Title      string     `json:"title" gorm:"type:varchar(255);not null"`
	Body       string     `json:"body" gorm:"type:text;not null"`
	Status     PostStatus `json:"status" gorm:"type:varchar(32);not null;index"`
	AuthorID   int64      `json:"authorId" gorm:"not null;index"`
	LanguageID int64      `json:"languageId" gorm:"not null;index"`
	OriginalID *int64     `json:"originalId,omitempty" gorm:"index"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"not null;index"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"not null"`

	Author     *User      `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Language   *Language  `json:"language,omitempty" gorm:"foreignKey:LanguageID"`
	Categories []Category `json:"categories" gorm:"many2many:post_categories"`
}

// Comment представляет комментарий к посту. Вложенность не глубже одного уровня.
type Comment struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	PostID    int64     `json:"postId" gorm:"not null;index"`
	ParentID  *int64    `json:"parentId,omitempty" gorm:"index"`
	AuthorID  int64     `json:"authorId" gorm:"not null;index"`
	Content   string    `json:"content" gorm:"type:varchar(2000);not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`

	Author     *User      `json:"author" gorm:"foreignKey:AuthorID"`
	ReplyCount *int64     `json:"replyCount,omitempty" gorm:"-"`
	Post       *Post      `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`   // gorm only
	Replies    []*Comment `json:"-" gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"` // gorm only
}

// IsTopLevel сообщает, что комментарий не является ответом.
func (c *Comment) IsTopLevel() bool {
	return c.ParentID == nil
}
