// Интерфейс Провайдера через который работает всё приложение.

package llm

import "context"

// Provider — контракт для любого AI-сервиса.
type Provider interface {
	// Generate принимает контекст и историю сообщений.
	// Возвращает ответ модели в унифицированном формате Message.
	Generate(ctx context.Context, messages []Message, opts ...GenerateOption) (Message, error)
}

// ObjectGenerator — провайдер со структурированным выводом.
//
// JSON Schema выводится из Go-типа out, ответ модели валидируется
// по ней и декодируется в out.
type ObjectGenerator interface {
	GenerateObject(ctx context.Context, messages []Message, name string, out any, opts ...GenerateOption) error
}

// Named — провайдер, который знает имя своей модели (для логов).
type Named interface {
	ModelName() string
}
