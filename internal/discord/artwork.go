package discord

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jfmyers9/cloudmusic/internal/queue"
)

// negativeCacheTTL is how long a failed lookup is remembered before the
// API is asked again.
const negativeCacheTTL = 10 * time.Minute

// artworkLookup picks a cover image for an entry. Catalog entries carry
// their own picture; local files are looked up in the iTunes Search API by
// artist and album, with results cached per album.
type artworkLookup struct {
	mu       sync.Mutex
	cache    map[string]cachedArt
	client   *http.Client
	endpoint string
	now      func() time.Time
}

type cachedArt struct {
	url string
	at  time.Time
}

func newArtworkLookup() *artworkLookup {
	return &artworkLookup{
		cache: make(map[string]cachedArt),
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
		endpoint: "https://itunes.apple.com/search",
		now:      time.Now,
	}
}

type itunesResponse struct {
	Results []itunesResult `json:"results"`
}

type itunesResult struct {
	ArtworkURL100 string `json:"artworkUrl100"`
}

// Cover returns an image URL for e, or "" when none is known. Artwork is
// optional; failures are not reported.
func (a *artworkLookup) Cover(e *queue.Entry) string {
	if e == nil {
		return ""
	}
	if e.PicURL != "" {
		return e.PicURL
	}
	if e.Artist() == "" && e.Album == "" {
		return ""
	}
	return a.Lookup(e.Artist(), e.Album, e.Name)
}

// Lookup searches by album first and falls back to the track title.
func (a *artworkLookup) Lookup(artist, album, title string) string {
	key := artist + "|" + album
	a.mu.Lock()
	if c, ok := a.cache[key]; ok && (c.url != "" || a.now().Sub(c.at) < negativeCacheTTL) {
		a.mu.Unlock()
		return c.url
	}
	a.mu.Unlock()

	artURL := ""
	if album != "" {
		artURL = a.fetch(artist+" "+album, "album")
	}
	if artURL == "" && title != "" {
		artURL = a.fetch(artist+" "+title, "song")
	}

	a.mu.Lock()
	a.cache[key] = cachedArt{url: artURL, at: a.now()}
	a.mu.Unlock()

	return artURL
}

func (a *artworkLookup) fetch(term, entity string) string {
	query := url.Values{
		"term":   {strings.TrimSpace(term)},
		"entity": {entity},
		"limit":  {"1"},
	}
	resp, err := a.client.Get(fmt.Sprintf("%s?%s", a.endpoint, query.Encode()))
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var result itunesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ""
	}
	if len(result.Results) == 0 || result.Results[0].ArtworkURL100 == "" {
		return ""
	}

	// Upscale from 100x100 to 600x600 for better quality
	return strings.Replace(result.Results[0].ArtworkURL100, "100x100bb", "600x600bb", 1)
}
