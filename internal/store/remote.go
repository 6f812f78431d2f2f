package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
)

// httpCacheMeta holds HTTP cache metadata for the meetings endpoint.
type httpCacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Remote reads meetings from a REST endpoint that returns a JSON array of
// Record. Responses are kept on disk and revalidated with ETag /
// Last-Modified; when the endpoint is down the last good copy is served.
type Remote struct {
	client   *http.Client
	url      string
	cacheDir string
}

// NewRemote creates a Remote store. cacheDir holds the last good response;
// an empty cacheDir disables the disk copy.
func NewRemote(url, cacheDir string, timeout time.Duration) (*Remote, error) {
	if url == "" {
		return nil, errors.New("remote store URL is empty")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Remote{
		client:   &http.Client{Timeout: timeout},
		url:      url,
		cacheDir: cacheDir,
	}, nil
}

func (r *Remote) Meetings(ctx context.Context, team string) ([]model.Meeting, error) {
	records, err := r.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}

	meetings, errs := convert(records, team)
	for _, e := range errs {
		appLog.Warn("store: skipping meeting", "store", "remote", "url", redactURL(r.url), "err", e.Error())
	}
	return meetings, nil
}

func decodeRecords(body []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode meetings: %w", err)
	}
	return records, nil
}

// fetch returns the decoded endpoint response, or the last good copy when
// the endpoint fails. Only a body that decodes is kept as the last good copy.
func (r *Remote) fetch(ctx context.Context) ([]Record, error) {
	cachePath := r.cachePath()
	var (
		meta       httpCacheMeta
		cachedBody []byte
	)
	if cachePath != "" {
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			return nil, err
		}
		meta, _ = loadCacheMeta(cachePath)
		cachedBody, _ = os.ReadFile(filepath.Join(cachePath, "body.json"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("store: remote network error, using cached body", err, "url", redactURL(r.url))
			return decodeRecords(cachedBody)
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}
		records, decErr := decodeRecords(body)
		if decErr != nil {
			if len(cachedBody) > 0 {
				appLog.Error("store: remote body rejected, using cached body", decErr, "url", redactURL(r.url))
				return decodeRecords(cachedBody)
			}
			return nil, decErr
		}
		if cachePath != "" {
			newMeta := httpCacheMeta{
				URL:          r.url,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := saveCache(cachePath, newMeta, body); err != nil {
				appLog.Error("store: remote cache save failed", err, "url", redactURL(r.url))
			}
		}
		appLog.Debug("store: remote fetch success", "url", redactURL(r.url), "bytes", len(body))
		return records, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return nil, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("store: remote not modified; using cache", "url", redactURL(r.url))
		return decodeRecords(cachedBody)

	default:
		if len(cachedBody) > 0 {
			appLog.Error("store: remote non-OK, using cached body", errors.New(resp.Status), "url", redactURL(r.url), "status", resp.StatusCode)
			return decodeRecords(cachedBody)
		}
		return nil, errors.New(resp.Status)
	}
}

func (r *Remote) cachePath() string {
	if r.cacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(r.url))
	return filepath.Join(r.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (httpCacheMeta, error) {
	var meta httpCacheMeta
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return httpCacheMeta{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta httpCacheMeta, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host for logging, e.g.
// https://example.com/wp-json/meetings?token=abcd -> https://example.com/...(redacted)
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "meetings://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
