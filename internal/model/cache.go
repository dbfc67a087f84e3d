package model

import "time"

// CacheRecord is a durable pointer to a previously delivered artifact,
// keyed by media id. At most one record ever exists per media id; repeated
// deliveries only increment Downloads.
type CacheRecord struct {
	MediaID    string
	FileRef    string // external file handle id from the messaging transport
	MessageRef string // message id inside the cache channel
	ChatRef    string // cache channel id
	Title      string
	Downloads  int64
	CreatedAt  time.Time
}
