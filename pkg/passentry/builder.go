package passentry

import (
	"context"

	"golang.org/x/sync/errgroup"

	"code.issuerext.org/golang/internal/observability"
	"code.issuerext.org/golang/internal/utils"
	"code.issuerext.org/golang/pkg/artwork"
	"code.issuerext.org/golang/pkg/credentials"
	"code.issuerext.org/golang/pkg/telemetry"
)

const DefaultMaxConcurrency = 16

// ArtworkResolver returns the Artwork of a Credential, it never fails.
type ArtworkResolver interface {
	Resolve(ctx context.Context, cred credentials.Credential) artwork.Artwork
}

// Cfg holds Builder configuration.
type Cfg struct {
	// Resolver resolves entries Artwork, required.
	Resolver ArtworkResolver

	// MaxConcurrency bounds the number of entries built at once, default 16.
	MaxConcurrency int

	// Telemetry receives a passentry-dropped event per dropped entry, may be nil.
	Telemetry telemetry.Sink
}

// Check returns an error if the Cfg is invalid.
func (self Cfg) Check() error {
	if nil == self.Resolver {
		return newError(Error, "nil Resolver")
	}
	if self.MaxConcurrency < 0 {
		return newError(Error, "negative MaxConcurrency")
	}

	return nil
}

// Builder builds PassEntries concurrently.
type Builder struct {
	resolver ArtworkResolver
	limit    int
	tm       telemetry.Sink
}

// NewBuilder returns a Builder configured by cfg.
func NewBuilder(cfg Cfg) (*Builder, error) {
	err := cfg.Check()
	if nil != err {
		return nil, wrapError(err, Error, "invalid Cfg")
	}

	rv := &Builder{resolver: cfg.Resolver, limit: cfg.MaxConcurrency, tm: cfg.Telemetry}
	if 0 == rv.limit {
		rv.limit = DefaultMaxConcurrency
	}
	if nil == rv.tm {
		rv.tm = telemetry.Nop{}
	}

	return rv, nil
}

// Build returns the PassEntries of creds, in creds order.
//
// Build returns after every entry build completed. Entries that fail to build
// are dropped, Build never fails.
func (self *Builder) Build(ctx context.Context, creds []credentials.Credential) []PassEntry {
	if 0 == len(creds) {
		return []PassEntry{}
	}

	built := make([]PassEntry, len(creds))
	ok := make([]bool, len(creds))

	g := errgroup.Group{}
	g.SetLimit(self.limit)
	for pos, cred := range creds {
		g.Go(func() error {
			entry, err := self.buildOne(ctx, cred)
			if nil != err {
				self.drop(ctx, cred, err)
				return nil
			}
			built[pos] = entry
			ok[pos] = true

			return nil
		})
	}
	g.Wait() // tasks never return errors

	entries := make([]PassEntry, 0, len(creds))
	for pos, entry := range built {
		if ok[pos] {
			entries = append(entries, entry)
		}
	}

	return entries
}

func (self *Builder) buildOne(ctx context.Context, cred credentials.Credential) (entry PassEntry, err error) {
	defer func() {
		if r := recover(); nil != r {
			err = newError(ErrPanic, "recovered %v", r)
		}
	}()

	if err = ctx.Err(); nil != err {
		return entry, wrapError(err, ErrCancelled, "build not started")
	}
	err = cred.Check()
	if nil != err {
		return entry, wrapError(err, ErrInvalid, "invalid Credential")
	}

	art := self.resolver.Resolve(ctx, cred)
	if err = ctx.Err(); nil != err {
		return entry, wrapError(err, ErrCancelled, "build interrupted")
	}

	return New(cred, art)
}

func (self *Builder) drop(ctx context.Context, cred credentials.Credential, err error) {
	reason := utils.FirstFlag(err, ErrCancelled, ErrPanic, ErrInvalid)
	if nil == reason {
		reason = Error
	}
	observability.GetObservability(ctx).Log().Warn(
		"dropped pass entry",
		"identifier", cred.Identifier,
		"error", err,
	)
	self.tm.Record(ctx, telemetry.KeyPassEntryDrop, map[string]any{
		"identifier": cred.Identifier,
		"reason":     reason.Error(),
	})
}
