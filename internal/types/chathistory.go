package types

// ChatHistory is one stored exchange: the prompt a user sent and the raw reply
// the model produced for it. Rows are append-only; the only delete is a purge
// of the whole table.
type ChatHistory struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserMessage    string `gorm:"column:user_message;type:text" json:"user_message"`
	GeminiResponse string `gorm:"column:gemini_response;type:text" json:"gemini_response"`
}

func (ChatHistory) TableName() string {
	return "chat_history"
}
