package domain

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a role-tagged chat entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PageContext describes where in the application the user currently is.
// It is sent by the frontend with assistant requests and folded into the
// system instruction.
type PageContext struct {
	Page          string `json:"page"`
	CourseTitle   string `json:"courseTitle,omitempty"`
	LessonTitle   string `json:"lessonTitle,omitempty"`
	LessonContent string `json:"lessonContent,omitempty"`
	Description   string `json:"description,omitempty"`
}
