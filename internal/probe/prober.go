package probe

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/wader/goutubedl"

	"github.com/tubebeam/tubebeam/internal/model"
)

const (
	// Cache defaults: probed metadata is only needed between "send link"
	// and "press quality button", so a short TTL is enough
	DefaultCacheSize = 512
	DefaultCacheTTL  = 15 * time.Minute

	watchURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// Fallback is the alternate extraction backend used when the primary
// probe fails
type Fallback interface {
	Probe(ctx context.Context, mediaID string) (*model.MediaInfo, error)
}

// Prober fetches and caches media metadata
type Prober struct {
	cache    *expirable.LRU[string, *model.MediaInfo]
	fallback Fallback
}

// NewProber creates a prober with an expiring metadata cache. fallback may
// be nil, in which case primary failures surface directly.
func NewProber(fallback Fallback, cacheSize int, ttl time.Duration) *Prober {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Prober{
		cache:    expirable.NewLRU[string, *model.MediaInfo](cacheSize, nil, ttl),
		fallback: fallback,
	}
}

// Probe returns metadata for the media id, from cache when fresh
func (p *Prober) Probe(ctx context.Context, mediaID string) (*model.MediaInfo, error) {
	if info, ok := p.cache.Get(mediaID); ok {
		return info, nil
	}

	info, err := p.probePrimary(ctx, mediaID)
	if err != nil {
		if p.fallback == nil {
			return nil, &model.ProbeError{MediaID: mediaID, Err: err}
		}
		log.Printf("probe %s: primary failed (%v), trying fallback", mediaID, err)

		fbInfo, fbErr := p.fallback.Probe(ctx, mediaID)
		if fbErr != nil {
			return nil, &model.ProbeError{MediaID: mediaID, Err: fmt.Errorf("primary: %v, fallback: %w", err, fbErr)}
		}
		info = fbInfo
	}

	p.cache.Add(mediaID, info)
	return info, nil
}

// Forget drops cached metadata for a media id. Called after delivery so a
// later request re-probes fresh stream URLs.
func (p *Prober) Forget(mediaID string) {
	p.cache.Remove(mediaID)
}

func (p *Prober) probePrimary(ctx context.Context, mediaID string) (*model.MediaInfo, error) {
	result, err := goutubedl.New(ctx, fmt.Sprintf(watchURLTemplate, mediaID), goutubedl.Options{
		Type: goutubedl.TypeSingle,
	})
	if err != nil {
		return nil, err
	}

	raw := result.Info
	info := &model.MediaInfo{
		ID:              mediaID,
		Title:           raw.Title,
		Channel:         raw.Uploader,
		DurationSeconds: raw.Duration,
		ThumbnailURL:    raw.Thumbnail,
		IsLive:          raw.IsLive,
		Source:          "yt-dlp",
	}

	var bestAudio *model.FormatOption
	bestABR := 0.0
	seen := make(map[string]bool)
	for _, format := range raw.Formats {
		size := int64(format.Filesize)
		if size == 0 {
			size = int64(format.FilesizeApprox)
		}

		if format.VCodec != "" && format.VCodec != "none" {
			if format.FormatNote == "" || seen[format.FormatNote] {
				continue
			}
			seen[format.FormatNote] = true
			info.Formats = append(info.Formats, model.FormatOption{
				FormatID:   format.FormatID,
				Quality:    format.FormatNote,
				SizeApprox: size,
			})
			continue
		}

		if format.ACodec != "" && format.ACodec != "none" {
			option := model.FormatOption{
				FormatID:   format.FormatID,
				Quality:    fmt.Sprintf("%dk", int(format.ABR)),
				SizeApprox: size,
				AudioOnly:  true,
			}
			if bestAudio == nil || format.ABR > bestABR {
				copied := option
				bestAudio = &copied
				bestABR = format.ABR
			}
		}
	}
	if bestAudio != nil {
		info.Formats = append(info.Formats, *bestAudio)
	}

	sort.SliceStable(info.Formats, func(i, j int) bool {
		return !info.Formats[i].AudioOnly && info.Formats[j].AudioOnly
	})

	return info, nil
}
