package storage

import (
	"context"

	"github.com/UkralStul/content-engine/internal/domain"
)

// CommentQuery - аргументы курсорной пагинации комментариев.
// ParentID == nil выбирает комментарии верхнего уровня поста PostID,
// иначе ответы на ParentID. Before - курсор: только id строго меньше него.
type CommentQuery struct {
	PostID   int64
	ParentID *int64
	Before   *int64
	Limit    int
}

// Storage определяет контракт для хранилищ контента.
type Storage interface {
	// Посты: чтение
	SearchPosts(ctx context.Context, q PostQuery) ([]*domain.Post, int64, error)
	GetPostByID(ctx context.Context, id int64) (*domain.Post, error)
	CountTranslations(ctx context.Context, originalID int64) (int64, error)
	GetLanguageByID(ctx context.Context, id int64) (*domain.Language, error)

	// Посты: запись. Замена набора категорий выполняется в той же транзакции,
	// неизвестные категории возвращают *MissingCategoriesError без частичной записи.
	CreatePost(ctx context.Context, post *domain.Post, categoryIDs []int64) (*domain.Post, error)
	UpdatePost(ctx context.Context, post *domain.Post, categoryIDs []int64) (*domain.Post, error)
	SetPostStatus(ctx context.Context, id int64, status domain.PostStatus) (*domain.Post, error)

	// Комментарии
	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	GetCommentByID(ctx context.Context, id int64) (*domain.Comment, error)
	UpdateCommentContent(ctx context.Context, id int64, content string) (*domain.Comment, error)
	DeleteComment(ctx context.Context, id int64) error

	// Методы для пагинации
	ListComments(ctx context.Context, q CommentQuery) ([]*domain.Comment, error)

	// Методы для Dataloader'ов
	CountRepliesByParentIDs(ctx context.Context, parentIDs []int64) (map[int64]int64, error)
}
