package telegram

import (
	"encoding/json"
	"strconv"
)

// Bot API methods
const (
	methodGetMe       = "getMe"
	methodSendMessage = "sendMessage"
	methodSetWebhook  = "setWebhook"
)

// SecretTokenHeader carries the secret registered with setWebhook on every update.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

type (
	apiResponse struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result,omitempty"`
		ErrorCode   int             `json:"error_code,omitempty"`
		Description string          `json:"description,omitempty"`
		Parameters  *apiParameters  `json:"parameters,omitempty"`
	}

	apiParameters struct {
		RetryAfter int `json:"retry_after,omitempty"`
	}

	apiUser struct {
		ID        int64  `json:"id"`
		IsBot     bool   `json:"is_bot"`
		FirstName string `json:"first_name"`
		Username  string `json:"username"`
	}

	sendMessageRequest struct {
		ChatID                string `json:"chat_id"`
		Text                  string `json:"text"`
		ParseMode             string `json:"parse_mode,omitempty"`
		DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
	}

	setWebhookRequest struct {
		URL            string   `json:"url"`
		SecretToken    string   `json:"secret_token,omitempty"`
		AllowedUpdates []string `json:"allowed_updates,omitempty"`
	}
)

type (
	// Update is the envelope the provider posts to the webhook.
	Update struct {
		UpdateID      int64    `json:"update_id"`
		Message       *Message `json:"message,omitempty"`
		EditedMessage *Message `json:"edited_message,omitempty"`
	}

	Message struct {
		MessageID int64  `json:"message_id"`
		From      *User  `json:"from,omitempty"`
		Chat      *Chat  `json:"chat,omitempty"`
		Text      string `json:"text,omitempty"`
	}

	User struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name,omitempty"`
		Username  string `json:"username,omitempty"`
	}

	Chat struct {
		ID   int64  `json:"id"`
		Type string `json:"type,omitempty"`
	}
)

// ChatID returns the chat of the update's message as a string, or "" when there is none.
func (u Update) ChatID() string {
	if u.Message == nil || u.Message.Chat == nil || u.Message.Chat.ID == 0 {
		return ""
	}
	return strconv.FormatInt(u.Message.Chat.ID, 10)
}

func (u Update) Text() string {
	if u.Message == nil {
		return ""
	}
	return u.Message.Text
}
