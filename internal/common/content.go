package common

import (
	"encoding/json"
	"fmt"
)

// Content is the closed set of notification payload variants, one per
// NotificationType. Each variant carries only the display fields for its type,
// snapshotted at creation time.
type Content interface {
	Type() NotificationType
	// Actor returns the display identity of the user that caused the
	// notification.
	Actor() string
	// Excerpt returns the display text for the notification: the message
	// preview for a dm, the post excerpt for post-related types, empty for
	// follows.
	Excerpt() string

	isContent()
}

type DMContent struct {
	SenderName     string `json:"sender_name"`
	Preview        string `json:"preview"`
	ConversationID string `json:"conversation_id"`
}

func (DMContent) Type() NotificationType { return NotifDM }
func (c DMContent) Actor() string        { return c.SenderName }
func (c DMContent) Excerpt() string      { return c.Preview }
func (DMContent) isContent()             {}

type LikeContent struct {
	ActorName   string `json:"actor_name"`
	PostExcerpt string `json:"post_excerpt"`
}

func (LikeContent) Type() NotificationType { return NotifLike }
func (c LikeContent) Actor() string        { return c.ActorName }
func (c LikeContent) Excerpt() string      { return c.PostExcerpt }
func (LikeContent) isContent()             {}

type FollowContent struct {
	ActorName string `json:"actor_name"`
}

func (FollowContent) Type() NotificationType { return NotifFollow }
func (c FollowContent) Actor() string        { return c.ActorName }
func (FollowContent) Excerpt() string        { return "" }
func (FollowContent) isContent()             {}

type ReplyContent struct {
	ActorName    string `json:"actor_name"`
	PostExcerpt  string `json:"post_excerpt"`
	ReplyExcerpt string `json:"reply_excerpt"`
}

func (ReplyContent) Type() NotificationType { return NotifReply }
func (c ReplyContent) Actor() string        { return c.ActorName }
func (c ReplyContent) Excerpt() string      { return c.PostExcerpt }
func (ReplyContent) isContent()             {}

type QuoteContent struct {
	ActorName    string `json:"actor_name"`
	PostExcerpt  string `json:"post_excerpt"`
	QuoteExcerpt string `json:"quote_excerpt"`
}

func (QuoteContent) Type() NotificationType { return NotifQuote }
func (c QuoteContent) Actor() string        { return c.ActorName }
func (c QuoteContent) Excerpt() string      { return c.PostExcerpt }
func (QuoteContent) isContent()             {}

type RepostContent struct {
	ActorName   string `json:"actor_name"`
	PostExcerpt string `json:"post_excerpt"`
}

func (RepostContent) Type() NotificationType { return NotifRepost }
func (c RepostContent) Actor() string        { return c.ActorName }
func (c RepostContent) Excerpt() string      { return c.PostExcerpt }
func (RepostContent) isContent()             {}

type NewPostContent struct {
	AuthorName  string `json:"author_name"`
	PostExcerpt string `json:"post_excerpt"`
}

func (NewPostContent) Type() NotificationType { return NotifNewPost }
func (c NewPostContent) Actor() string        { return c.AuthorName }
func (c NewPostContent) Excerpt() string      { return c.PostExcerpt }
func (NewPostContent) isContent()             {}

type contentEnvelope struct {
	Type NotificationType `json:"type"`
	Data json.RawMessage  `json:"data"`
}

// MarshalContent encodes a content variant into its storage envelope.
func MarshalContent(c Content) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal %s content: %w", c.Type(), err)
	}
	return json.Marshal(contentEnvelope{Type: c.Type(), Data: data})
}

// UnmarshalContent decodes a storage envelope back into its variant. An
// unknown type tag is an error: the union is closed.
func UnmarshalContent(b []byte) (Content, error) {
	var env contentEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal content envelope: %w", err)
	}

	var c Content
	switch env.Type {
	case NotifDM:
		c = &DMContent{}
	case NotifLike:
		c = &LikeContent{}
	case NotifFollow:
		c = &FollowContent{}
	case NotifReply:
		c = &ReplyContent{}
	case NotifQuote:
		c = &QuoteContent{}
	case NotifRepost:
		c = &RepostContent{}
	case NotifNewPost:
		c = &NewPostContent{}
	default:
		return nil, fmt.Errorf("unknown notification content type %q", env.Type)
	}

	if err := json.Unmarshal(env.Data, c); err != nil {
		return nil, fmt.Errorf("unmarshal %s content: %w", env.Type, err)
	}
	return c, nil
}
