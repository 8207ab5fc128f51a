package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"Musico/redis_client"

	"github.com/Strum355/log"
	"github.com/kkdai/youtube/v2"
	"github.com/ppalone/ytsearch"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

var errNoResults = errors.New("search returned no results")

// Resolver turns a user query, either a YouTube URL or free-text search
// terms, into a playable Track. It is stateless per guild and safe for
// concurrent use from every guild's player.
type Resolver struct {
	strategies []Strategy
	search     func(ctx context.Context, query string) (videoID string, err error)
	titleByID  func(ctx context.Context, videoID string) (string, error)
	redis      *redis.Client
	httpClient *http.Client
	limiter    *rate.Limiter
	cacheTTL   time.Duration
	maxBackoff time.Duration
	oembedURL  string
}

// New builds a Resolver with the fixed client-profile strategy order and an
// optional Redis cache for resolved tracks.
func New(rdb *redis.Client) *Resolver {
	r := &Resolver{
		strategies: defaultStrategies(),
		redis:      rdb,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(
			rate.Limit(viper.GetFloat64("resolver.rate.limit")),
			viper.GetInt("resolver.rate.burst"),
		),
		cacheTTL:   time.Duration(viper.GetInt("cache.resolve")) * time.Second,
		maxBackoff: time.Duration(viper.GetInt("resolver.backoff.max.seconds")) * time.Second,
		oembedURL:  oembedEndpoint,
	}
	r.search = ytSearchTop
	r.titleByID = ytSearchTitleByID
	return r
}

// Resolve returns a fully playable Track or a classified *ResolutionError.
// It may block for several seconds on network calls and backoff waits, so
// callers must keep it off their guild's serialized command path.
func (r *Resolver) Resolve(ctx context.Context, query, requestedBy string) (*Track, error) {
	query = strings.TrimSpace(query)

	if t := r.cached(ctx, query); t != nil {
		return t.forRequest(query, requestedBy), nil
	}

	if isURL(query) {
		videoID, err := youtube.ExtractVideoID(query)
		if err != nil {
			return nil, newResolutionError(KindUnsupported, err)
		}

		t, resErr := r.resolveVideo(ctx, videoID)
		if t != nil {
			r.store(ctx, query, t)
			return t.forRequest(query, requestedBy), nil
		}
		if ctx.Err() != nil {
			return nil, resErr
		}

		// Every direct strategy failed. Recover the best-known title and
		// retry the whole strategy list in search mode, exactly once.
		title := r.recoverTitle(ctx, videoID)
		if title == "" {
			return nil, resErr
		}
		log.WithFields(log.Fields{"video_id": videoID, "title": title}).
			Info("Direct extraction failed, falling back to search by title")
		if t, err := r.resolveSearch(ctx, title); err == nil {
			r.store(ctx, query, t)
			return t.forRequest(query, requestedBy), nil
		}
		return nil, resErr
	}

	t, resErr := r.resolveSearch(ctx, query)
	if resErr != nil {
		return nil, resErr
	}
	r.store(ctx, query, t)
	return t.forRequest(query, requestedBy), nil
}

// resolveVideo runs the strategy list against one video ID. Retryable
// failures wait an increasing backoff before the next strategy; fatal ones
// abandon the remaining strategies immediately.
func (r *Resolver) resolveVideo(ctx context.Context, videoID string) (*Track, *ResolutionError) {
	var last *ResolutionError

	for i, strategy := range r.strategies {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, newResolutionError(KindNetworkFailure, err)
		}

		track, err := strategy.Attempt(ctx, videoID)
		if err == nil {
			if verr := r.verifyStream(ctx, track.StreamURL); verr != nil {
				err = verr
			} else {
				log.WithFields(log.Fields{"strategy": strategy.Name(), "video_id": videoID}).
					Info("Extraction succeeded")
				return track, nil
			}
		}

		kind, retryable := classify(err)
		last = newResolutionError(kind, err)
		log.WithFields(log.Fields{"strategy": strategy.Name(), "video_id": videoID, "kind": kind.String()}).
			Info("Extraction strategy failed")

		if !retryable {
			return nil, last
		}
		if i < len(r.strategies)-1 {
			if err := r.backoff(ctx, i); err != nil {
				return nil, last
			}
		}
	}

	if last == nil {
		last = newResolutionError(KindNetworkFailure, errors.New("no extraction strategies configured"))
	}
	return nil, last
}

// resolveSearch finds the top search hit for the terms and resolves it
// through the same strategy list.
func (r *Resolver) resolveSearch(ctx context.Context, terms string) (*Track, *ResolutionError) {
	videoID, err := r.search(ctx, terms)
	if err != nil {
		if errors.Is(err, errNoResults) {
			return nil, newResolutionError(KindNotFound, err)
		}
		kind, _ := classify(err)
		return nil, newResolutionError(kind, err)
	}
	return r.resolveVideo(ctx, videoID)
}

// recoverTitle finds a human title for a video whose direct extraction
// failed: oEmbed first, then a search for the bare video ID.
func (r *Resolver) recoverTitle(ctx context.Context, videoID string) string {
	if title, err := r.oembedTitle(ctx, videoID); err == nil {
		return title
	}
	if title, err := r.titleByID(ctx, videoID); err == nil {
		return title
	}
	return ""
}

// verifyStream confirms the extracted URL actually serves bytes. YouTube
// sometimes hands out URLs that immediately 403.
func (r *Resolver) verifyStream(ctx context.Context, streamURL string) error {
	if !strings.HasPrefix(streamURL, "http") {
		return errors.New("stream URL is not resolvable")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, streamURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", mwebUserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return errors.New("stream URL validation failed with status " + resp.Status)
	}
	return nil
}

func (r *Resolver) backoff(ctx context.Context, attempt int) error {
	wait := time.Duration(1<<attempt) * time.Second
	if wait > r.maxBackoff {
		wait = r.maxBackoff
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cached returns a previously resolved track for the query, re-verifying its
// stream URL since YouTube URLs expire.
func (r *Resolver) cached(ctx context.Context, query string) *Track {
	if r.redis == nil {
		return nil
	}
	data, err := r.redis.Get(redis_client.Ctx, "resolve:"+query).Result()
	if err != nil || data == "" {
		return nil
	}
	var t Track
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil
	}
	if r.verifyStream(ctx, t.StreamURL) != nil {
		return nil
	}
	return &t
}

func (r *Resolver) store(ctx context.Context, query string, t *Track) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	r.redis.Set(redis_client.Ctx, "resolve:"+query, data, r.cacheTTL)
}

// forRequest copies the shared track and stamps it with the request that
// produced it, keeping cached tracks free of per-request state.
func (t *Track) forRequest(query, requestedBy string) *Track {
	out := *t
	out.Query = query
	out.RequestedBy = requestedBy
	return &out
}

func isURL(query string) bool {
	return strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://")
}

func ytSearchTop(ctx context.Context, query string) (string, error) {
	c := ytsearch.NewClient(nil)
	res, err := c.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(res.Results) == 0 {
		return "", errNoResults
	}
	return res.Results[0].VideoID, nil
}

func ytSearchTitleByID(ctx context.Context, videoID string) (string, error) {
	c := ytsearch.NewClient(nil)
	res, err := c.Search(ctx, videoID)
	if err != nil {
		return "", err
	}
	for _, result := range res.Results {
		if result.VideoID == videoID {
			return result.Title, nil
		}
	}
	return "", errNoResults
}
