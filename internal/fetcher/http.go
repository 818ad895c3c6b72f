package fetcher

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultMaxBytes caps a single media download.
const DefaultMaxBytes int64 = 20 << 20

// ErrTooLarge is returned when a body exceeds the configured cap.
var ErrTooLarge = eris.New("fetcher: media exceeds size limit")

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
}

// HTTPFetcher implements Fetcher using net/http. It makes a single attempt
// per call.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "meal-analyzer/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts: opts,
	}
}

// Fetch downloads rawURL. Only http and https URLs are accepted.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Media, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, u.Host)
	}
	if resp.ContentLength > f.opts.MaxBytes {
		return nil, ErrTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}
	if int64(len(data)) > f.opts.MaxBytes {
		return nil, ErrTooLarge
	}

	ct := ContentType(resp.Header.Get("Content-Type"), data)
	zap.L().Debug("fetched media",
		zap.String("host", u.Host),
		zap.String("content_type", ct),
		zap.Int("bytes", len(data)),
	)
	return &Media{Data: data, ContentType: ct}, nil
}

// ContentType returns the media type of data. A declared type wins unless
// it is missing or generic, in which case the bytes are sniffed.
func ContentType(declared string, data []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	if sniffed := sniffAudio(data); sniffed != "" {
		return sniffed
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

// sniffAudio recognizes the container formats the transcription API accepts
// that http.DetectContentType misses.
func sniffAudio(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[4:8]) == "ftyp":
		return "audio/mp4"
	case len(data) >= 4 && string(data[:4]) == "\x1aE\xdf\xa3":
		return "audio/webm"
	case len(data) >= 4 && string(data[:4]) == "fLaC":
		return "audio/flac"
	}
	return ""
}

// Extension maps an audio media type to a filename extension understood by
// the transcription API.
func Extension(mediaType string) string {
	switch mediaType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/wav", "audio/wave", "audio/x-wav":
		return ".wav"
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/ogg", "application/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	}
	return ".bin"
}
