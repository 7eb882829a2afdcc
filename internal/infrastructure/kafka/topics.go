package kafka

// Broker topic names used by the relay and worker services.
const (
	TopicRegistrationInit     = "registration.init"
	TopicRegistrationConfirm  = "registration.confirm"
	TopicRegistrationPassword = "registration.password"
	TopicRegistrationStatus   = "registration.status"
	TopicClientStart          = "client.start"
	TopicClientStop           = "client.stop"
	TopicClientStatus         = "client.status"
	TopicClientError          = "client.error"
	TopicMessageProcess       = "message.process"
	TopicMessageAnswer        = "message.answer"
	TopicMessageSend          = "message.send"
	TopicTopicInvalidate      = "topic.invalidate"
)
