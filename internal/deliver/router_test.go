package deliver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tubebeam/tubebeam/internal/hosting"
	"github.com/tubebeam/tubebeam/internal/model"
)

type fakeMessenger struct {
	sent int
	err  error
}

func (f *fakeMessenger) SendFile(_ context.Context, _ string, meta FileMeta) (*SentMessage, error) {
	f.sent++
	if f.err != nil {
		return nil, f.err
	}
	return &SentMessage{FileRef: "file-" + meta.MediaID, MessageRef: "42", ChatRef: "-100"}, nil
}

type fakeHoster struct {
	uploads int
	err     error
}

func (f *fakeHoster) Upload(_ context.Context, _ string) (*hosting.HostedFile, error) {
	f.uploads++
	if f.err != nil {
		return nil, f.err
	}
	return &hosting.HostedFile{URL: "https://filebin.net/abc/file.mp3", SizeLabel: "80 MB", Expiry: "in 6 days"}, nil
}

type fakeStore struct {
	mu         sync.Mutex
	records    map[string]*model.CacheRecord
	creates    int
	increments int
	err        error // injected failure for every store call
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*model.CacheRecord)}
}

func (f *fakeStore) FindByMediaID(_ context.Context, mediaID string) (*model.CacheRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.records[mediaID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (f *fakeStore) Create(_ context.Context, record *model.CacheRecord) (*model.CacheRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if existing, ok := f.records[record.MediaID]; ok {
		copied := *existing
		return &copied, nil
	}
	copied := *record
	f.records[record.MediaID] = &copied
	result := copied
	return &result, nil
}

func (f *fakeStore) IncrementDownload(_ context.Context, mediaID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments++
	if record, ok := f.records[mediaID]; ok {
		record.Downloads++
	}
	return nil
}

func TestDeliverHostedWhenLarge(t *testing.T) {
	messenger := &fakeMessenger{}
	hoster := &fakeHoster{}
	router := NewRouter(messenger, hoster, newFakeStore(), 0)

	res, err := router.Deliver(context.Background(), "/tmp/big.mp4", 80*1024*1024, FileMeta{MediaID: "abc"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Inline {
		t.Error("Expected hosted delivery for an oversized file")
	}
	if res.Link == nil || res.Link.URL == "" {
		t.Fatal("Expected a hosted link")
	}
	if hoster.uploads != 1 {
		t.Errorf("Expected 1 upload, got %d", hoster.uploads)
	}
	if messenger.sent != 0 {
		t.Errorf("Expected no inline send, got %d", messenger.sent)
	}
}

func TestDeliverAtExactLimit(t *testing.T) {
	messenger := &fakeMessenger{}
	hoster := &fakeHoster{}
	router := NewRouter(messenger, hoster, newFakeStore(), 0)

	// A file exactly at the ceiling goes to hosting, not inline
	res, err := router.Deliver(context.Background(), "/tmp/edge.mp4", InlineSizeLimit, FileMeta{MediaID: "abc"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Inline {
		t.Error("Expected hosted delivery at the exact size limit")
	}
}

func TestDeliverInlineVideo(t *testing.T) {
	messenger := &fakeMessenger{}
	store := newFakeStore()
	router := NewRouter(messenger, &fakeHoster{}, store, 0)

	res, err := router.Deliver(context.Background(), "/tmp/small.mp4", 5*1024*1024, FileMeta{MediaID: "abc"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !res.Inline {
		t.Error("Expected inline delivery for a small file")
	}
	if res.Message == nil || res.Message.FileRef != "file-abc" {
		t.Errorf("Expected sent message refs, got %+v", res.Message)
	}

	// Video deliveries never touch the cache
	if store.creates != 0 || store.increments != 0 {
		t.Errorf("Expected no cache writes for video, got %d creates and %d increments", store.creates, store.increments)
	}
}

func TestDeliverInlineAudioCaches(t *testing.T) {
	store := newFakeStore()
	router := NewRouter(&fakeMessenger{}, &fakeHoster{}, store, 0)

	meta := FileMeta{MediaID: "abc", Title: "Song", Audio: true}
	res, err := router.Deliver(context.Background(), "/tmp/song.mp3", 3*1024*1024, meta)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Record == nil {
		t.Fatal("Expected a cache record")
	}
	if res.Record.Downloads != 1 {
		t.Errorf("Expected 1 download on the fresh record, got %d", res.Record.Downloads)
	}

	// A second delivery reuses the record and bumps the counter
	res, err = router.Deliver(context.Background(), "/tmp/song.mp3", 3*1024*1024, meta)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if store.creates != 1 {
		t.Errorf("Expected exactly 1 create, got %d", store.creates)
	}
	if res.Record.Downloads != 2 {
		t.Errorf("Expected 2 downloads, got %d", res.Record.Downloads)
	}
}

func TestDeliverAudioConcurrentCreatesOnce(t *testing.T) {
	store := newFakeStore()
	router := NewRouter(&fakeMessenger{}, &fakeHoster{}, store, 0)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta := FileMeta{MediaID: "abc", Audio: true}
			if _, err := router.Deliver(context.Background(), "/tmp/song.mp3", 1024, meta); err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		}()
	}
	wg.Wait()

	if store.creates != 1 {
		t.Errorf("Expected exactly 1 create across %d racing deliveries, got %d", workers, store.creates)
	}
	if store.increments != workers {
		t.Errorf("Expected %d increments, got %d", workers, store.increments)
	}
}

func TestDeliverAudioSurvivesStoreFailure(t *testing.T) {
	messenger := &fakeMessenger{}
	store := newFakeStore()
	store.err = errors.New("database is locked")
	router := NewRouter(messenger, &fakeHoster{}, store, 0)

	// The file already reached the channel; a cache-store failure must
	// not turn the delivery into an error
	res, err := router.Deliver(context.Background(), "/tmp/song.mp3", 1024, FileMeta{MediaID: "abc", Audio: true})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !res.Inline {
		t.Error("Expected inline delivery")
	}
	if res.Message == nil {
		t.Fatal("Expected the sent message to be returned")
	}
	if res.Record != nil {
		t.Errorf("Expected no record when the store fails, got %+v", res.Record)
	}
	if messenger.sent != 1 {
		t.Errorf("Expected 1 send, got %d", messenger.sent)
	}
}

func TestDeliverUploadFailure(t *testing.T) {
	hoster := &fakeHoster{err: errors.New("bin rejected")}
	router := NewRouter(&fakeMessenger{}, hoster, newFakeStore(), 0)

	_, err := router.Deliver(context.Background(), "/tmp/big.mp4", InlineSizeLimit, FileMeta{MediaID: "abc"})
	var uploadErr *model.UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("Expected UploadError, got %v", err)
	}
	if uploadErr.MediaID != "abc" {
		t.Errorf("Expected media id 'abc' on the error, got '%s'", uploadErr.MediaID)
	}

	// Exactly one attempt, no retry
	if hoster.uploads != 1 {
		t.Errorf("Expected 1 upload attempt, got %d", hoster.uploads)
	}
}

func TestDeliverSendFailure(t *testing.T) {
	messenger := &fakeMessenger{err: errors.New("flood wait")}
	store := newFakeStore()
	router := NewRouter(messenger, &fakeHoster{}, store, 0)

	_, err := router.Deliver(context.Background(), "/tmp/song.mp3", 1024, FileMeta{MediaID: "abc", Audio: true})
	var uploadErr *model.UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("Expected UploadError, got %v", err)
	}
	if messenger.sent != 1 {
		t.Errorf("Expected 1 send attempt, got %d", messenger.sent)
	}
	if store.creates != 0 {
		t.Errorf("Expected no cache write after a failed send, got %d", store.creates)
	}
}
