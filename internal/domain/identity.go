package domain

// Role - роль вызывающего. Admin - высшая привилегированная роль.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid сообщает, является ли роль одним из известных значений.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Caller - контекст идентичности, который движок получает от транспортного слоя.
// Анонимный вызывающий имеет UserID == 0.
type Caller struct {
	UserID int64
	Role   Role
}

// Anonymous - вызывающий без аутентификации.
var Anonymous = Caller{}

// Authenticated сообщает, что вызывающий аутентифицирован.
func (c Caller) Authenticated() bool {
	return c.UserID > 0
}
