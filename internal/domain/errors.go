package domain

import "errors"

// Виды ошибок движка. Конкретные ошибки оборачивают их через fmt.Errorf("...: %w", ...),
// транспортный слой различает их через errors.Is.
var (
	// ErrNotFound - объект отсутствует или скрыт от вызывающего. Эти случаи намеренно неразличимы.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized - у вызывающего нет владения или нужной роли.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidArgument - некорректные фильтры, неизвестные категории, нарушение вложенности и т.п.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict - нарушены правила связей переводов.
	ErrConflict = errors.New("conflict")
)
