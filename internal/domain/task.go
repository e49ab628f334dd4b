package domain

// taskDescriptions maps a task context identifier to the human-readable
// description used when building the system instruction for that task.
var taskDescriptions = map[string]string{
	"document-analysis":   "Анализ документов: составление executive summary, выделение ключевых тезисов и структурирование информации из документа.",
	"deep-research":       "Глубокое исследование: формулировка исследовательских вопросов, поиск и анализ данных, систематизация найденной информации.",
	"specialized-gpt":     "Создание специализированного GPT-ассистента: написание системной инструкции (system prompt) для кастомного AI-помощника.",
	"client-response":     "Ответ клиенту: составление профессионального, вежливого и структурированного письма клиенту.",
	"meeting-agenda":      "Повестка встречи: подготовка структурированной повестки (agenda) и follow-up письма по итогам встречи.",
	"feedback-colleagues": "Обратная связь коллегам: составление конструктивного, доброжелательного и полезного фидбека.",
}

// TaskDescription returns the description for a task context, or a
// generic fallback when the task is not in the catalog.
func TaskDescription(taskContext string) string {
	if d, ok := taskDescriptions[taskContext]; ok {
		return d
	}
	return "Задание: " + taskContext
}
