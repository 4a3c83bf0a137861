package imagesearch

import (
	"context"
	"errors"
)

var (
	// ErrAccount covers credential, billing and quota rejections.
	ErrAccount = errors.New("image search account error")
	// ErrAPI is any other provider failure.
	ErrAPI = errors.New("image search api error")
)

type Candidate struct {
	ImageURL         string `json:"imageUrl"`
	Title            string `json:"title"`
	AltText          string `json:"altText"`
	AttributionURL   string `json:"attributionUrl"`
	AttributionTitle string `json:"attributionTitle"`
}

// Label is the text compared against the visual description.
func (c Candidate) Label() string {
	if c.Title != "" {
		return c.Title
	}
	return c.AltText
}

type Provider interface {
	Search(ctx context.Context, query string, count int) ([]Candidate, error)
}
