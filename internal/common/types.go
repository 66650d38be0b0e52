package common

type NotificationType string

const (
	NotifDM      NotificationType = "dm"
	NotifLike    NotificationType = "like"
	NotifFollow  NotificationType = "follow"
	NotifReply   NotificationType = "reply"
	NotifQuote   NotificationType = "quote"
	NotifRepost  NotificationType = "repost"
	NotifNewPost NotificationType = "new_post"
)

func (t NotificationType) String() string {
	return string(t)
}

func (t NotificationType) IsValid() bool {
	switch t {
	case NotifDM, NotifLike, NotifFollow, NotifReply, NotifQuote, NotifRepost, NotifNewPost:
		return true
	}
	return false
}

type MessageType string

const (
	MessageText      MessageType = "text"
	MessageImage     MessageType = "image"
	MessagePostShare MessageType = "post_share"
)

func (t MessageType) String() string {
	return string(t)
}

func (t MessageType) IsValid() bool {
	switch t {
	case MessageText, MessageImage, MessagePostShare:
		return true
	}
	return false
}

type EmailFrequency string

const (
	EmailInstant EmailFrequency = "instant"
	EmailDaily   EmailFrequency = "daily"
	EmailWeekly  EmailFrequency = "weekly"
	EmailNever   EmailFrequency = "never"
)

func (f EmailFrequency) IsValid() bool {
	switch f {
	case EmailInstant, EmailDaily, EmailWeekly, EmailNever:
		return true
	}
	return false
}

// PreviewLength is the display length message previews and post excerpts are
// truncated to when a notification snapshot is taken.
const PreviewLength = 100

// Truncate shortens s so the result never exceeds n runes, ellipsis
// included.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
