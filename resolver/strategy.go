package resolver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kkdai/youtube/v2"
)

var errNoAudioFormats = errors.New("no audio formats available for video")

// Strategy is one extraction technique. Strategies are tried in a fixed
// order by the Resolver until one yields a playable track.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, videoID string) (*Track, error)
}

// Client profiles emulated when talking to YouTube. Mobile clients are the
// least likely to trip bot detection, so they go first.
const (
	mwebUserAgent    = "Mozilla/5.0 (Linux; Android 11; SM-G973F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.120 Mobile Safari/537.36"
	androidUserAgent = "com.google.android.youtube/17.31.35 (Linux; U; Android 11) gzip"
)

func defaultStrategies() []Strategy {
	return []Strategy{
		newClientStrategy("mweb", mwebUserAgent),
		newClientStrategy("android", androidUserAgent),
		newClientStrategy("web", ""),
	}
}

// clientStrategy extracts metadata and a stream URL through the YouTube
// innertube API, presenting itself as a particular client profile.
type clientStrategy struct {
	name   string
	client youtube.Client
}

func newClientStrategy(name, userAgent string) *clientStrategy {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &userAgentTransport{
			userAgent: userAgent,
			base:      http.DefaultTransport,
		},
	}
	return &clientStrategy{
		name:   name,
		client: youtube.Client{HTTPClient: httpClient},
	}
}

func (s *clientStrategy) Name() string {
	return s.name
}

func (s *clientStrategy) Attempt(ctx context.Context, videoID string) (*Track, error) {
	video, err := s.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, err
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, errNoAudioFormats
	}

	streamURL, err := s.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return nil, err
	}

	thumbnail := ""
	if len(video.Thumbnails) > 0 {
		thumbnail = video.Thumbnails[0].URL
	}

	return &Track{
		ID:        video.ID,
		Title:     video.Title,
		Author:    video.Author,
		Duration:  video.Duration,
		StreamURL: streamURL,
		PageURL:   "https://www.youtube.com/watch?v=" + video.ID,
		Thumbnail: thumbnail,
	}, nil
}

// userAgentTransport overrides the User-Agent on every outbound request so a
// single youtube.Client behaves like one fixed device profile.
type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
