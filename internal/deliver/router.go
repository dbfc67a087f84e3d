package deliver

import (
	"context"
	"log"
	"sync"

	"github.com/tubebeam/tubebeam/internal/hosting"
	"github.com/tubebeam/tubebeam/internal/model"
)

// InlineSizeLimit is the messaging transport's inline upload ceiling
const InlineSizeLimit int64 = 50 * 1024 * 1024

// FileMeta carries presentation metadata for an inline send
type FileMeta struct {
	MediaID      string
	Title        string
	Performer    string
	Duration     int // seconds
	ThumbnailURL string
	Width        int
	Height       int
	Audio        bool
}

// SentMessage identifies a file message inside the cache channel
type SentMessage struct {
	FileRef    string
	MessageRef string
	ChatRef    string
}

// Messenger streams a file inline through the chat transport
type Messenger interface {
	SendFile(ctx context.Context, path string, meta FileMeta) (*SentMessage, error)
}

// Hoster uploads a file to the external hosting fallback
type Hoster interface {
	Upload(ctx context.Context, path string) (*hosting.HostedFile, error)
}

// CacheStore is the durable media cache consumed by the router
type CacheStore interface {
	FindByMediaID(ctx context.Context, mediaID string) (*model.CacheRecord, error)
	Create(ctx context.Context, record *model.CacheRecord) (*model.CacheRecord, error)
	IncrementDownload(ctx context.Context, mediaID string) error
}

// Result describes how delivery went
type Result struct {
	Inline  bool
	Message *SentMessage        // set on inline delivery
	Link    *hosting.HostedFile // set on hosted delivery
	Record  *model.CacheRecord  // set after an inline audio delivery
}

// Router performs the routing decision and the guarded cache write
type Router struct {
	limit     int64
	messenger Messenger
	hoster    Hoster
	store     CacheStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-media create-or-increment guard
}

// NewRouter creates a delivery router. A non-positive limit falls back to
// InlineSizeLimit.
func NewRouter(messenger Messenger, hoster Hoster, store CacheStore, limit int64) *Router {
	if limit <= 0 {
		limit = InlineSizeLimit
	}
	return &Router{
		limit:     limit,
		messenger: messenger,
		hoster:    hoster,
		store:     store,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Deliver routes the finished file. Upload failures are returned as
// UploadError and never retried here, so the user cannot receive the same
// file twice.
func (r *Router) Deliver(ctx context.Context, path string, size int64, meta FileMeta) (*Result, error) {
	if size >= r.limit {
		hosted, err := r.hoster.Upload(ctx, path)
		if err != nil {
			return nil, &model.UploadError{MediaID: meta.MediaID, Err: err}
		}
		return &Result{Link: hosted}, nil
	}

	sent, err := r.messenger.SendFile(ctx, path, meta)
	if err != nil {
		return nil, &model.UploadError{MediaID: meta.MediaID, Err: err}
	}

	result := &Result{Inline: true, Message: sent}

	if meta.Audio {
		record, err := r.storeOnce(ctx, meta, sent)
		if err != nil {
			// The file reached the cache channel; failing the delivery
			// now would hide it from the user. A missing record just
			// means a cache miss re-downloads next time.
			log.Printf("deliver %s: cache record not stored: %v", meta.MediaID, err)
		} else {
			result.Record = record
		}
	}

	return result, nil
}

// storeOnce performs the create-or-increment on the cache record. The
// per-media mutex plus the store's conditional insert guarantee exactly
// one record per media id even when completions race.
func (r *Router) storeOnce(ctx context.Context, meta FileMeta, sent *SentMessage) (*model.CacheRecord, error) {
	lock := r.mediaLock(meta.MediaID)
	lock.Lock()
	defer lock.Unlock()

	record, err := r.store.FindByMediaID(ctx, meta.MediaID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record, err = r.store.Create(ctx, &model.CacheRecord{
			MediaID:    meta.MediaID,
			FileRef:    sent.FileRef,
			MessageRef: sent.MessageRef,
			ChatRef:    sent.ChatRef,
			Title:      meta.Title,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := r.store.IncrementDownload(ctx, meta.MediaID); err != nil {
		return nil, err
	}
	record.Downloads++
	return record, nil
}

func (r *Router) mediaLock(mediaID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[mediaID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[mediaID] = lock
	}
	return lock
}
