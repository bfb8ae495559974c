// Базовые типы - определяем универсальный язык общения с моделями
package llm

// Message — одно сообщение в истории чата.
type Message struct {
	Role    string   // "system", "user", "assistant"
	Content string   // Текст сообщения
	Images  []string // data-URI или http ссылки, только для vision запросов
}

// Константы для удобства
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SystemMessage собирает системное сообщение.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage собирает сообщение пользователя.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage собирает ответ ассистента.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
