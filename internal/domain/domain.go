package domain

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one logged message. Index is its position in the session log.
type Turn struct {
	Role  Role
	Text  string
	Index int
}

// Exchange is a user input paired with the assistant reply to it.
type Exchange struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}
