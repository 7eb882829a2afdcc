package kafka

// RegistrationInitEvent is the payload of registration.init: a user handing
// over API credentials and a phone number to start the sign-in handshake.
type RegistrationInitEvent struct {
	UserID  int64  `json:"user_id"`
	APIID   int    `json:"api_id"`
	APIHash string `json:"api_hash"`
	Phone   string `json:"phone"`
}

// RegistrationConfirmEvent is the payload of registration.confirm: the
// verification code Telegram sent to the user's device.
type RegistrationConfirmEvent struct {
	UserID int64  `json:"user_id"`
	Code   string `json:"code"`
}

// RegistrationPasswordEvent is the payload of registration.password: the
// two-factor cloud password for accounts that require one.
type RegistrationPasswordEvent struct {
	UserID   int64  `json:"user_id"`
	Password string `json:"password"`
}

// MessageSendEvent is the payload of message.send: a drafted reply coming
// back from the answering service to be delivered through the user's session.
type MessageSendEvent struct {
	UserID           int64  `json:"user_id"`
	ChatID           int64  `json:"chat_id"`
	ReplyToMessageID int64  `json:"reply_to_message_id"`
	Text             string `json:"text"`
}

// TopicInvalidateEvent is the payload of topic.invalidate: the topic set of
// a chat changed and its cached embeddings must be recomputed.
type TopicInvalidateEvent struct {
	UserID int64 `json:"user_id"`
	ChatID int64 `json:"chat_id"`
}

// ClientStartEvent is the payload of client.start
type ClientStartEvent struct {
	UserID int64 `json:"user_id"`
}

// ClientStopEvent is the payload of client.stop
type ClientStopEvent struct {
	UserID int64 `json:"user_id"`
}

// ClientStatusEvent is the payload of client.status
type ClientStatusEvent struct {
	UserID int64  `json:"user_id"`
	Event  string `json:"event"`
}

// ClientErrorEvent is the payload of client.error
type ClientErrorEvent struct {
	UserID int64  `json:"user_id"`
	Error  string `json:"error"`
}
