package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const oembedEndpoint = "https://www.youtube.com/oembed?format=json&url=https://www.youtube.com/watch?v="

// oembedTitle fetches the title of a video through YouTube's oEmbed API,
// which keeps answering after the player endpoints start demanding a login.
// It yields no stream, only enough metadata to retry in search mode.
func (r *Resolver) oembedTitle(ctx context.Context, videoID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.oembedURL+videoID, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oembed returned status %d", resp.StatusCode)
	}

	var payload struct {
		Title      string `json:"title"`
		AuthorName string `json:"author_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.Title == "" {
		return "", fmt.Errorf("oembed returned no title for %s", videoID)
	}
	return payload.Title, nil
}
