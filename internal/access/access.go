// Package access собирает в одном месте все решения о доступе, которые раньше
// повторялись в обработчиках постов, комментариев и модерации.
package access

import "github.com/UkralStul/content-engine/internal/domain"

// IsPrivileged сообщает, что роль дает доступ к чужому неопубликованному контенту.
func IsPrivileged(caller domain.Caller) bool {
	return caller.Role == domain.RoleModerator || caller.Role == domain.RoleAdmin
}

// CanModerate - может ли вызывающий менять статус чужих постов.
func CanModerate(caller domain.Caller) bool {
	return IsPrivileged(caller)
}

// IsOwner сообщает, что аутентифицированный вызывающий владеет ресурсом.
func IsOwner(caller domain.Caller, ownerID int64) bool {
	return caller.Authenticated() && caller.UserID == ownerID
}

// CanViewPost - виден ли пост (и его обсуждение) вызывающему.
// Одобренный пост виден всем, остальные только автору и привилегированным ролям.
func CanViewPost(caller domain.Caller, post *domain.Post) bool {
	if post == nil {
		return false
	}
	if post.Status == domain.PostStatusApproved {
		return true
	}
	return IsOwner(caller, post.AuthorID) || IsPrivileged(caller)
}

// CanMutate - может ли вызывающий редактировать ресурс. Редактирование только владельцем.
func CanMutate(caller domain.Caller, ownerID int64) bool {
	return IsOwner(caller, ownerID)
}

// CanDeleteComment - автор удаляет всегда, остальные только с высшей ролью.
func CanDeleteComment(caller domain.Caller, comment *domain.Comment) bool {
	if comment == nil {
		return false
	}
	if IsOwner(caller, comment.AuthorID) {
		return true
	}
	return caller.Authenticated() && caller.Role == domain.RoleAdmin
}
