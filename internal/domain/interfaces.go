package domain

import (
	"context"
	"time"
)

// Directory отвечает за доступ к загруженной конфигурации компании.
type Directory interface {
	Company() Company
	People() []Person
	Viewer() Person
	Assistant() Person
	PersonByName(name string) (Person, bool)
	Channels() ChannelConfig
	Theme() Theme
}

// Completer стримит ответ AI-ассистента фрагментами HTML.
type Completer interface {
	Stream(ctx context.Context, prompt string, onFragment func(fragment string)) error
}

// StagedCompleter: Completer, который перед ответом сообщает промежуточные статусы
// («думает», «подключается», «загружает логи»).
type StagedCompleter interface {
	Completer
	StreamStaged(ctx context.Context, prompt string, onStatus func(status string), onFragment func(fragment string)) error
}

// Clock возвращает текущее время. Подменяется в тестах.
type Clock func() time.Time

// Stopper останавливает отложенный вызов.
type Stopper interface {
	Stop() bool
}

// AfterFunc планирует вызов f через d. По умолчанию: обёртка над time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Stopper

// RealAfterFunc использует таймеры рантайма.
func RealAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// AvatarImage: скачанная картинка аватара и расширение файла для неё.
type AvatarImage struct {
	Data   []byte
	Ext    string
	Source string
}

// AvatarFetcher скачивает аватар для персоны.
type AvatarFetcher interface {
	Fetch(ctx context.Context, p Person) (AvatarImage, error)
}
