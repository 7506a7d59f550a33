package models

import "errors"

// Таксономия ошибок координации. Все ошибки сервисов и репозиториев оборачивают
// одну из них, вызывающий код классифицирует их через errors.Is.
var (
	// ErrInvalidTransition - недопустимый переход статуса
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrMissingReference - "занятый" статус машины без ссылки на инцидент
	ErrMissingReference = errors.New("missing incident reference")
	// ErrPreconditionFailed - входное условие действия больше не выполняется
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrStoreUnavailable - хранилище или подписка недоступны на транспортном уровне
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound - документ с таким ID отсутствует
	ErrNotFound = errors.New("not found")
	// ErrConflict - версия документа изменилась между чтением и записью
	ErrConflict = errors.New("concurrent modification")
	// ErrValidation - некорректные входные данные
	ErrValidation = errors.New("validation failed")
)
