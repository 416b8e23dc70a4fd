package entity

import "time"

// Alert types with a dedup window.
const (
	EventContributionProgress  = "contribution_progress"
	EventContactAdded          = "contact_added"
	EventFriendsCircleReminder = "friends_circle_reminder"
)

var dedupWindows = map[string]time.Duration{
	EventContributionProgress:  4 * time.Hour,
	EventContactAdded:          24 * time.Hour,
	EventFriendsCircleReminder: 72 * time.Hour,
}

// DedupWindow returns the suppression window for an alert type.
// Alert types without a window are never deduplicated.
func DedupWindow(eventType string) (time.Duration, bool) {
	w, ok := dedupWindows[eventType]
	return w, ok
}

// DedupKey identifies one logical notification for duplicate suppression.
type DedupKey struct {
	EventType string
	Recipient string
	EventKey  string
}

// Bucket returns the index of the fixed window that now falls into.
// A non-positive window yields bucket 0.
func (k DedupKey) Bucket(now time.Time, window time.Duration) int64 {
	secs := int64(window / time.Second)
	if secs <= 0 {
		return 0
	}
	return now.Unix() / secs
}

// MaxDedupWindow is the longest window of any alert type. Claims older than
// this can no longer suppress anything.
func MaxDedupWindow() time.Duration {
	var longest time.Duration
	for _, w := range dedupWindows {
		longest = max(longest, w)
	}
	return longest
}
