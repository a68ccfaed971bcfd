package artwork

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gregjones/httpcache"

	"code.issuerext.org/golang/internal/observability"
	"code.issuerext.org/golang/internal/utils"
	"code.issuerext.org/golang/pkg/credentials"
	"code.issuerext.org/golang/pkg/telemetry"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxBytes     = 4 << 20
)

// httpClient is a private interface that simplify mocking http.Client.
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cfg holds Resolver configuration.
type Cfg struct {
	// FetchTimeout bounds a remote asset download, default 10s.
	FetchTimeout time.Duration

	// MaxBytes bounds a remote asset size, default 4 MiB.
	MaxBytes int64

	// Client downloads remote assets.
	// default is an http.Client using an httpcache transport backed by Cache.
	Client httpClient

	// Cache holds revalidated remote assets when Client is nil.
	// default is a BoundedCache of MaxCacheBytes.
	Cache httpcache.Cache

	// MaxCacheBytes bounds the default Cache size, default 64 MiB.
	MaxCacheBytes int64

	// Bundle holds the local assets, may be nil.
	Bundle *Bundle

	// Telemetry receives an artwork-fallback event when remote resolution fails, may be nil.
	Telemetry telemetry.Sink
}

// Check returns an error if the Cfg is invalid.
func (self Cfg) Check() error {
	if self.FetchTimeout < 0 {
		return newError(Error, "negative FetchTimeout")
	}
	if self.MaxBytes < 0 {
		return newError(Error, "negative MaxBytes")
	}
	if self.MaxCacheBytes < 0 {
		return newError(Error, "negative MaxCacheBytes")
	}

	return nil
}

// Resolver resolves credential Artwork.
type Resolver struct {
	fetchTimeout time.Duration
	maxBytes     int64
	client       httpClient
	bundle       *Bundle
	tm           telemetry.Sink
}

// NewResolver returns a Resolver configured by cfg.
func NewResolver(cfg Cfg) (*Resolver, error) {
	err := cfg.Check()
	if nil != err {
		return nil, wrapError(err, Error, "invalid Cfg")
	}

	rv := &Resolver{
		fetchTimeout: cfg.FetchTimeout,
		maxBytes:     cfg.MaxBytes,
		client:       cfg.Client,
		bundle:       cfg.Bundle,
		tm:           cfg.Telemetry,
	}
	if 0 == rv.fetchTimeout {
		rv.fetchTimeout = DefaultFetchTimeout
	}
	if 0 == rv.maxBytes {
		rv.maxBytes = DefaultMaxBytes
	}
	if nil == rv.client {
		cache := cfg.Cache
		if nil == cache {
			cache = NewBoundedCache(cfg.MaxCacheBytes)
		}
		// repeated listings revalidate cached assets using ETag
		rv.client = &http.Client{Transport: httpcache.NewTransport(cache)}
	}
	if nil == rv.tm {
		rv.tm = telemetry.Nop{}
	}

	return rv, nil
}

// Resolve returns cred Artwork. It always returns a usable Artwork.
func (self *Resolver) Resolve(ctx context.Context, cred credentials.Credential) Artwork {
	log := observability.GetObservability(ctx).Log().With("identifier", cred.Identifier)

	if "" != cred.AssetUrl {
		art, err := self.Fetch(ctx, cred.AssetUrl)
		if nil == err {
			return art
		}
		log.Warn("failed fetching remote artwork", "url", cred.AssetUrl, "error", err)
		self.tm.Record(ctx, telemetry.KeyArtworkFallback, map[string]any{
			"identifier": cred.Identifier,
			"reason":     reason(err),
		})
	}

	if "" != cred.AssetName {
		art, err := self.bundle.Load(cred.AssetName)
		if nil == err {
			return art
		}
		log.Debug("bundled artwork unavailable", "asset", cred.AssetName, "error", err)
	}

	return Default()
}

// Fetch downloads and decodes the image at rawurl.
func (self *Resolver) Fetch(ctx context.Context, rawurl string) (Artwork, error) {
	assetUrl, err := url.Parse(rawurl)
	if nil != err {
		return Artwork{}, wrapError(err, ErrInvalidURL, "failed parsing %q", rawurl)
	}
	if !slices.Contains([]string{"http", "https"}, assetUrl.Scheme) {
		return Artwork{}, newError(ErrInvalidURL, "invalid scheme %q", assetUrl.Scheme)
	}
	if "" == assetUrl.Host {
		return Artwork{}, newError(ErrInvalidURL, "missing host in %q", rawurl)
	}

	ctx, cancel := context.WithTimeout(ctx, self.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetUrl.String(), nil)
	if nil != err {
		return Artwork{}, wrapError(err, ErrFetch, "failed instantiating http Request")
	}
	req.Header.Add("Accept", "image/*")
	resp, err := self.client.Do(req)
	if nil != err {
		return Artwork{}, wrapError(err, ErrFetch, "failed http GET request")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 || resp.StatusCode < 200 {
		return Artwork{}, newError(ErrFetch, "failed http GET request, got status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, self.maxBytes+1))
	if nil != err {
		return Artwork{}, wrapError(err, ErrFetch, "failed reading resp.Body")
	}
	if int64(len(data)) > self.maxBytes {
		return Artwork{}, newError(ErrTooLarge, "asset exceeds %d bytes", self.maxBytes)
	}

	art, err := Decode(data)
	if nil != err {
		return Artwork{}, wrapError(err, ErrDecode, "invalid remote asset")
	}
	art.Source = SourceRemote

	return art, nil
}

// reason returns a short label classifying a Fetch error.
func reason(err error) string {
	flag := utils.FirstFlag(err, ErrInvalidURL, ErrTooLarge, ErrDecode, ErrFetch)
	if nil == flag {
		return string(Error)
	}
	return flag.Error()
}
