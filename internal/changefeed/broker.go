// Package changefeed - клиент ленты изменений: подписка на коллекцию и доставка
// полных снимков документов после каждой записи.
package changefeed

import (
	"context"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// Broker передает сигналы "коллекция изменилась". Сами документы по сигналу
// не передаются, подписчик перечитывает коллекцию целиком.
type Broker interface {
	Publish(ctx context.Context, collection models.Collection) error
	Listen(ctx context.Context, collection models.Collection) (Listener, error)
}

// Listener - поток сигналов одной коллекции
type Listener interface {
	// Changes закрывается после Close или при обрыве транспорта
	Changes() <-chan struct{}
	// Err возвращает причину обрыва; nil, если слушатель закрыт вызывающим
	Err() error
	Close() error
}

// PublishAll публикует сигналы для нескольких коллекций, возвращает первую ошибку
func PublishAll(ctx context.Context, b Broker, collections ...models.Collection) error {
	var firstErr error
	for _, c := range collections {
		if err := b.Publish(ctx, c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
