package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/logger"
)

// Asset is a named stream to upload. Name becomes the object key below the
// channel prefix.
type Asset struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FileAsset returns an asset that reads the file at path on demand.
func FileAsset(name, path string) (Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Asset{}, err
	}
	return Asset{
		Name:        name,
		ContentType: contentTypeFor(path),
		Size:        info.Size(),
		Open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// BytesAsset returns an in-memory asset.
func BytesAsset(name, contentType string, data []byte) Asset {
	return Asset{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func contentTypeFor(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

const defaultConcurrency = 4

// Channel uploads and removes assets on an ObjectStorage.
type Channel struct {
	store       ObjectStorage
	prefix      string
	concurrency int
}

// NewChannel returns a channel writing below prefix. concurrency bounds the
// number of uploads or deletes in flight.
func NewChannel(store ObjectStorage, prefix string, concurrency int) *Channel {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Channel{store: store, prefix: strings.Trim(prefix, "/"), concurrency: concurrency}
}

func (c *Channel) key(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + "/" + name
}

// Put uploads assets and returns their URLs; urls[i] belongs to assets[i]
// no matter which upload finishes first. On failure, uploads that already
// succeeded are left in place.
func (c *Channel) Put(ctx context.Context, assets []Asset) ([]string, error) {
	urls := make([]string, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, asset := range assets {
		g.Go(func() error {
			key := c.key(asset.Name)
			if err := c.upload(gctx, key, asset); err != nil {
				return &domain.UploadError{Op: "put", URL: c.store.GetURL(key), Failures: []error{err}}
			}
			urls[i] = c.store.GetURL(key)
			logger.With(logger.Fields{logger.FieldAudioURL: urls[i], logger.FieldSize: asset.Size}).
				Debug(ctx, "Uploaded %s", asset.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func (c *Channel) upload(ctx context.Context, key string, asset Asset) error {
	r, err := asset.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", asset.Name, err)
	}
	defer r.Close()
	return c.store.Upload(ctx, key, r, asset.Size, asset.ContentType)
}

// Remove deletes every URL, continuing past failures. Missing objects fail
// with domain.ErrAssetNotFound so callers can treat them as already removed.
func (c *Channel) Remove(ctx context.Context, urls []string) error {
	var (
		mu       sync.Mutex
		removed  []string
		failures []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, u := range urls {
		g.Go(func() error {
			err := c.remove(gctx, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", u, err))
			} else {
				removed = append(removed, u)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		return &domain.UploadError{Op: "remove", Removed: removed, Failures: failures}
	}
	return nil
}

func (c *Channel) remove(ctx context.Context, u string) error {
	key, ok := c.store.KeyForURL(u)
	if !ok {
		return fmt.Errorf("not hosted here: %w", domain.ErrAssetNotFound)
	}
	exists, err := c.store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrAssetNotFound
	}
	return c.store.Delete(ctx, key)
}

// URLBaseName returns the last path segment of a URL, unescaped.
func URLBaseName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(p)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return base
}

// CanonicalBaseName returns the base name of a URL without its extension,
// e.g. "interview.00.00.mp3" becomes "interview.00.00". Derived assets such
// as task pages are named from it.
func CanonicalBaseName(rawURL string) string {
	base := URLBaseName(rawURL)
	return strings.TrimSuffix(base, path.Ext(base))
}
