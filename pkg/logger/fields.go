package logger

const (
	FieldChannel  = "channel"
	FieldChatID   = "chat_id"
	FieldSenderID = "sender_id"
	FieldPreview  = "preview"
	FieldError    = "error"

	FieldAppID       = "app_id"
	FieldReceiver    = "receiver"
	FieldVerdict     = "verdict"
	FieldMsgType     = "msg_type"
	FieldContentType = "content_type"
	FieldPath        = "path"
	FieldURL         = "url"
	FieldDurationMS  = "duration_ms"

	FieldMessageContentLength = "message_content_length"
	FieldSegmentIndex         = "segment_index"
	FieldSegmentTotal         = "segment_total"
)
