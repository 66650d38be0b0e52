package notif

import (
	"encoding/json"
	"fmt"
	"time"

	"ripple/internal/common"
	"ripple/internal/dbmysql"
)

// Notification is the decoded view of a stored row: the content envelope is
// unpacked into its union variant. The grouping algorithm and the HTTP layer
// work on this type.
type Notification struct {
	ID               string                  `json:"id"`
	UserID           string                  `json:"user_id"`
	Type             common.NotificationType `json:"type"`
	Content          common.Content          `json:"content"`
	RelatedUserID    *string                 `json:"related_user_id,omitempty"`
	RelatedPostID    *string                 `json:"related_post_id,omitempty"`
	RelatedMessageID *string                 `json:"related_message_id,omitempty"`
	IsRead           bool                    `json:"is_read"`
	ReadAt           *time.Time              `json:"read_at,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
}

// notificationJSON is the wire shape: content travels as the tagged
// envelope so clients (and tests) can decode it back into its variant.
type notificationJSON struct {
	ID               string                  `json:"id"`
	UserID           string                  `json:"user_id"`
	Type             common.NotificationType `json:"type"`
	Content          json.RawMessage         `json:"content"`
	RelatedUserID    *string                 `json:"related_user_id,omitempty"`
	RelatedPostID    *string                 `json:"related_post_id,omitempty"`
	RelatedMessageID *string                 `json:"related_message_id,omitempty"`
	IsRead           bool                    `json:"is_read"`
	ReadAt           *time.Time              `json:"read_at,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
}

func (n *Notification) MarshalJSON() ([]byte, error) {
	content, err := common.MarshalContent(n.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(notificationJSON{
		ID:               n.ID,
		UserID:           n.UserID,
		Type:             n.Type,
		Content:          content,
		RelatedUserID:    n.RelatedUserID,
		RelatedPostID:    n.RelatedPostID,
		RelatedMessageID: n.RelatedMessageID,
		IsRead:           n.IsRead,
		ReadAt:           n.ReadAt,
		CreatedAt:        n.CreatedAt,
	})
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	var aux notificationJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	content, err := common.UnmarshalContent(aux.Content)
	if err != nil {
		return err
	}
	*n = Notification{
		ID:               aux.ID,
		UserID:           aux.UserID,
		Type:             aux.Type,
		Content:          content,
		RelatedUserID:    aux.RelatedUserID,
		RelatedPostID:    aux.RelatedPostID,
		RelatedMessageID: aux.RelatedMessageID,
		IsRead:           aux.IsRead,
		ReadAt:           aux.ReadAt,
		CreatedAt:        aux.CreatedAt,
	}
	return nil
}

func decode(row *dbmysql.Notification) (*Notification, error) {
	content, err := common.UnmarshalContent(row.Content)
	if err != nil {
		return nil, fmt.Errorf("notification %s: %w", row.ID, err)
	}
	return &Notification{
		ID:               row.ID,
		UserID:           row.UserID,
		Type:             row.Type,
		Content:          content,
		RelatedUserID:    row.RelatedUserID,
		RelatedPostID:    row.RelatedPostID,
		RelatedMessageID: row.RelatedMessageID,
		IsRead:           row.IsRead,
		ReadAt:           row.ReadAt,
		CreatedAt:        row.CreatedAt,
	}, nil
}

func decodeAll(rows []*dbmysql.Notification) ([]*Notification, error) {
	out := make([]*Notification, 0, len(rows))
	for _, row := range rows {
		n, err := decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
