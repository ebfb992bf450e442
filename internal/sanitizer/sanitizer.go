// Package sanitizer очищает пользовательский текст от исполняемой разметки
// до того, как он попадет в хранилище.
package sanitizer

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	rich  = bluemonday.UGCPolicy()
	plain = bluemonday.StrictPolicy()
)

// Sanitize оставляет безопасное подмножество форматирования (абзацы, выделение, списки,
// ссылки с http/https) и удаляет script/style, обработчики событий и javascript: ссылки.
// Повторный вызов не меняет результат.
func Sanitize(text string) string {
	return clean(rich, text)
}

// SanitizePlain удаляет всю разметку. Используется для заголовков.
func SanitizePlain(text string) string {
	return clean(plain, text)
}

// clean отбрасывает байты, не образующие корректный UTF-8, на входе и на выходе политики.
func clean(policy *bluemonday.Policy, text string) string {
	out := policy.Sanitize(strings.ToValidUTF8(text, ""))
	return strings.TrimSpace(strings.ToValidUTF8(out, ""))
}
