package notif

import (
	"time"

	"ripple/internal/common"
)

// GroupWindow is the span within which same-type, equivalence-matching
// notifications merge for display.
const GroupWindow = 24 * time.Hour

// Group is a merged run of notifications presented as one display row.
type Group struct {
	ID          string                  `json:"id"`
	Type        common.NotificationType `json:"type"`
	Users       []string                `json:"users"`
	PostContent string                  `json:"post_content,omitempty"`
	Preview     string                  `json:"preview,omitempty"`
	IsRead      bool                    `json:"is_read"`
	Count       int                     `json:"count"`
	CreatedAt   time.Time               `json:"created_at"`
}

// DisplayItem is either a single notification or a group, never both.
type DisplayItem struct {
	Notification *Notification `json:"notification,omitempty"`
	Group        *Group        `json:"group,omitempty"`
}

// GroupNotifications collapses a reverse-chronological notification list into
// display items. Output keeps the input order keyed by each item's newest
// member.
//
// A candidate joins the group anchored at c when it is within the 24h window
// of c, shares c's type, and satisfies the type's equivalence: dm groups runs
// from the same sender; like/reply/quote group distinct actors on the same
// post; follow and new_post group distinct actors on time alone. Other types
// never group.
func GroupNotifications(notifications []*Notification) []DisplayItem {
	items := make([]DisplayItem, 0, len(notifications))
	consumed := make([]bool, len(notifications))

	for i, c := range notifications {
		if consumed[i] {
			continue
		}
		consumed[i] = true

		members := []*Notification{c}
		for j := i + 1; j < len(notifications); j++ {
			if consumed[j] {
				continue
			}
			if joins(c, members, notifications[j]) {
				consumed[j] = true
				members = append(members, notifications[j])
			}
		}

		if len(members) < 2 {
			items = append(items, DisplayItem{Notification: c})
			continue
		}
		items = append(items, DisplayItem{Group: makeGroup(members)})
	}
	return items
}

func joins(c *Notification, members []*Notification, d *Notification) bool {
	if d.Type != c.Type {
		return false
	}
	if absDuration(c.CreatedAt.Sub(d.CreatedAt)) > GroupWindow {
		return false
	}

	switch c.Type {
	case common.NotifDM:
		// The only type where the same actor causes grouping.
		return sameActor(c, d)
	case common.NotifLike, common.NotifReply, common.NotifQuote:
		return samePost(c, d) && distinctActorFromAll(members, d)
	case common.NotifFollow, common.NotifNewPost:
		return distinctActorFromAll(members, d)
	default:
		return false
	}
}

func sameActor(a, b *Notification) bool {
	return a.RelatedUserID != nil && b.RelatedUserID != nil &&
		*a.RelatedUserID == *b.RelatedUserID
}

func samePost(a, b *Notification) bool {
	return a.RelatedPostID != nil && b.RelatedPostID != nil &&
		*a.RelatedPostID == *b.RelatedPostID
}

// distinctActorFromAll holds when d's actor differs from every collected
// member's actor; the same actor is never merged for multi-actor types.
func distinctActorFromAll(members []*Notification, d *Notification) bool {
	if d.RelatedUserID == nil {
		return false
	}
	for _, m := range members {
		if m.RelatedUserID == nil || *m.RelatedUserID == *d.RelatedUserID {
			return false
		}
	}
	return true
}

func makeGroup(members []*Notification) *Group {
	newest := members[0]

	group := &Group{
		ID:        newest.ID,
		Type:      newest.Type,
		Users:     make([]string, 0, len(members)),
		IsRead:    true,
		Count:     len(members),
		CreatedAt: newest.CreatedAt,
	}
	for _, m := range members {
		group.Users = append(group.Users, m.Content.Actor())
		if !m.IsRead {
			group.IsRead = false
		}
	}

	if newest.Type == common.NotifDM {
		group.Preview = newest.Content.Excerpt()
	} else {
		group.PostContent = newest.Content.Excerpt()
	}
	return group
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
