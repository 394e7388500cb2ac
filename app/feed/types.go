package feed

import "time"

// Item is a normalized feed entry. GUID falls back to the item link and may
// be empty when the source provides neither; callers drop such items.
type Item struct {
	GUID        string
	Title       string
	Link        string
	Summary     string
	PublishedAt time.Time
}

// Metadata contains metadata about the parsed feed
type Metadata struct {
	Title       string
	Link        string
	Description string
}
