package scrape

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"reelnotes/internal/config"
	"reelnotes/internal/services"
)

const stageName = "fetch"

// Metadata holds everything the scraper can learn about a post without
// authenticating. Fields parsed out of the og:description string may be
// empty when Instagram changes the format; Description falls back to the
// raw og:description in that case.
type Metadata struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Likes        string `json:"likes,omitempty"`
	Comments     string `json:"comments,omitempty"`
	Description  string `json:"description,omitempty"`
	PostedAt     string `json:"postedAt,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	VideoURL     string `json:"videoUrl,omitempty"`
}

// Scraper fetches Instagram pages and extracts Open Graph metadata.
type Scraper struct {
	httpClient *http.Client
	userAgent  string
}

// NewScraper constructs a scraper from configuration.
func NewScraper(cfg *config.Config) *Scraper {
	timeout := 30 * time.Second
	userAgent := ""
	if cfg != nil {
		userAgent = cfg.Fetch.UserAgent
	}
	return &Scraper{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// NewScraperWithClient allows tests to supply a custom HTTP client.
func NewScraperWithClient(client *http.Client, userAgent string) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Scraper{httpClient: client, userAgent: userAgent}
}

// Fetch downloads the post page and extracts metadata. Missing pages map to
// a permanent not-found error; login walls and rate limits are also treated
// as permanent because anonymous retries will keep hitting the same wall.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "scrape", "build request", err)
	}
	s.applyHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "scrape", fmt.Sprintf("fetch %s", pageURL), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, services.Wrap(services.ErrNotFound, stageName, "scrape", fmt.Sprintf("post removed (%d)", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		return nil, services.Wrap(services.ErrValidation, stageName, "scrape", fmt.Sprintf("access denied (%d), login wall or rate limit", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return nil, services.Wrap(services.ErrTransient, stageName, "scrape", fmt.Sprintf("server error (%d)", resp.StatusCode), nil)
	default:
		return nil, services.Wrap(services.ErrTransient, stageName, "scrape", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "scrape", "parse page", err)
	}

	return extractMetadata(doc), nil
}

func (s *Scraper) applyHeaders(req *http.Request) {
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Cache-Control", "max-age=0")
}

func extractMetadata(doc *goquery.Document) *Metadata {
	meta := &Metadata{
		Title:        metaContent(doc, "property", "og:title"),
		ThumbnailURL: metaContent(doc, "property", "og:image"),
		VideoURL:     metaContent(doc, "property", "og:video"),
	}

	rawDescription := metaContent(doc, "property", "og:description")
	if rawDescription == "" {
		rawDescription = metaContent(doc, "name", "description")
	}

	parsed := ParseDescription(rawDescription)
	meta.Likes = parsed.Likes
	meta.Comments = parsed.Comments
	meta.Author = parsed.Author
	meta.PostedAt = parsed.PostedAt
	meta.Description = parsed.Text
	if meta.Description == "" {
		meta.Description = rawDescription
	}
	return meta
}

func metaContent(doc *goquery.Document, attr, value string) string {
	selection := doc.Find(fmt.Sprintf(`meta[%s=%q]`, attr, value))
	content, _ := selection.First().Attr("content")
	return content
}
