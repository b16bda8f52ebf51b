package domain

// Update is one inbound event from the Telegram Bot API, delivered either as
// a webhook body or as an element of a getUpdates batch. Exactly one of the
// payload fields is normally set.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *ChatUpdate    `json:"message,omitempty"`
	EditedMessage *ChatUpdate    `json:"edited_message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// ChatUpdate is the message payload of an update.
type ChatUpdate struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
}

// CallbackQuery is acknowledged and otherwise ignored.
type CallbackQuery struct {
	ID   string `json:"id"`
	From *User  `json:"from,omitempty"`
}

// ChatPayload returns whichever message payload the update carries, or nil.
func (u Update) ChatPayload() *ChatUpdate {
	if u.Message != nil {
		return u.Message
	}
	return u.EditedMessage
}
