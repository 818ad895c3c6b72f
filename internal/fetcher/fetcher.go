package fetcher

import (
	"context"
)

// Media is a downloaded image or audio payload.
type Media struct {
	Data        []byte
	ContentType string
}

// Fetcher defines the interface for downloading remote media referenced by
// analysis requests.
type Fetcher interface {
	// Fetch downloads the URL and returns its body and content type.
	Fetch(ctx context.Context, url string) (*Media, error)
}
