package unsplash

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ai-notetaking-pipeline/pkg/imagesearch"
	"ai-notetaking-pipeline/pkg/providererr"

	"github.com/goccy/go-json"
)

const DefaultBaseURL = "https://api.unsplash.com"

type Client struct {
	accessKey string
	baseURL   string
	http      *http.Client
}

var _ imagesearch.Provider = (*Client)(nil)

func NewClient(accessKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		accessKey: accessKey,
		baseURL:   baseURL,
		http:      &http.Client{Timeout: 20 * time.Second},
	}
}

type searchResponse struct {
	Results []struct {
		Description    string `json:"description"`
		AltDescription string `json:"alt_description"`
		URLs           struct {
			Regular string `json:"regular"`
		} `json:"urls"`
		Links struct {
			HTML string `json:"html"`
		} `json:"links"`
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	} `json:"results"`
}

func (c *Client) Search(ctx context.Context, query string, count int) ([]imagesearch.Candidate, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(count))
	q.Set("content_filter", "high")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/photos?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", imagesearch.ErrAPI, err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", imagesearch.ErrAPI, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		if providererr.IsQuota(providererr.FromHTTP("unsplash", resp.StatusCode, string(body))) {
			return nil, fmt.Errorf("%w: status %d: %s", imagesearch.ErrAccount, resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("%w: status %d: %s", imagesearch.ErrAPI, resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", imagesearch.ErrAPI, err)
	}

	out := make([]imagesearch.Candidate, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URLs.Regular == "" {
			continue
		}
		c := imagesearch.Candidate{
			ImageURL:       r.URLs.Regular,
			Title:          r.Description,
			AltText:        r.AltDescription,
			AttributionURL: r.Links.HTML,
		}
		if r.User.Name != "" {
			c.AttributionTitle = fmt.Sprintf("Photo by %s on Unsplash", r.User.Name)
		}
		out = append(out, c)
	}
	return out, nil
}
