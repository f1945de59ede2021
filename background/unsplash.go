package background

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/disintegration/imaging"
)

// DefaultUnsplashURL is the public Unsplash API root.
const DefaultUnsplashURL = "https://api.unsplash.com"

var (
	// ErrMissingCredential means no access key was configured.
	ErrMissingCredential = errors.New("unsplash access key not set")
	// ErrUnexpectedStatus is wrapped with the HTTP status of a failed call.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Unsplash fetches a random photo matching a keyword from the Unsplash API.
type Unsplash struct {
	AccessKey string
	BaseURL   string       // defaults to DefaultUnsplashURL
	Client    *http.Client // defaults to http.DefaultClient
}

var _ Source = (*Unsplash)(nil)

type randomPhoto struct {
	URLs struct {
		Regular string `json:"regular"`
	} `json:"urls"`
}

// Fetch looks up a random squarish photo for keyword and downloads it.
func (u *Unsplash) Fetch(ctx context.Context, keyword string) (image.Image, error) {
	if u == nil || strings.TrimSpace(u.AccessKey) == "" {
		return nil, ErrMissingCredential
	}
	base := u.BaseURL
	if base == "" {
		base = DefaultUnsplashURL
	}
	q := url.Values{}
	q.Set("query", keyword)
	q.Set("orientation", "squarish")
	endpoint := strings.TrimRight(base, "/") + "/photos/random?" + q.Encode()

	resp, err := u.get(ctx, endpoint, true)
	if err != nil {
		return nil, fmt.Errorf("unsplash lookup: %w", err)
	}
	var photo randomPhoto
	err = json.NewDecoder(resp.Body).Decode(&photo)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("unsplash lookup: decode response: %w", err)
	}
	if photo.URLs.Regular == "" {
		return nil, errors.New("unsplash lookup: response has no regular url")
	}

	resp, err = u.get(ctx, photo.URLs.Regular, false)
	if err != nil {
		return nil, fmt.Errorf("unsplash download: %w", err)
	}
	defer resp.Body.Close()
	img, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unsplash download: decode image: %w", err)
	}
	return img, nil
}

// get issues a GET and returns the response only for 200; the API key is sent
// to the API host only, never to the photo CDN.
func (u *Unsplash) get(ctx context.Context, target string, authorize bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if authorize {
		req.Header.Set("Authorization", "Client-ID "+u.AccessKey)
		req.Header.Set("Accept-Version", "v1")
	}
	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return resp, nil
}
