// Package extension exposes the callbacks a host wallet framework invokes on an
// issuer provisioning extension.
//
// Listing callbacks never fail, they return an empty list when the credential
// cache can not be read. GenerateRequest reports failures with the provision flags.
package extension

import (
	"context"
	"log/slog"

	"code.issuerext.org/golang/internal/observability"
	"code.issuerext.org/golang/pkg/credentials"
	"code.issuerext.org/golang/pkg/passentry"
	"code.issuerext.org/golang/pkg/protocols/provision"
	"code.issuerext.org/golang/pkg/telemetry"
)

const (
	deviceLocal  = "local"
	deviceRemote = "remote"
)

// Status is returned to the host platform status callback.
type Status struct {
	// Available is true if a credential can be provisioned on the local device.
	Available bool `json:"available"`

	// RemoteAvailable is true if a credential can be provisioned on the paired device.
	RemoteAvailable bool `json:"remoteAvailable"`

	// RequiresAuthentication is a static policy.
	RequiresAuthentication bool `json:"requiresAuthentication"`
}

// Cfg holds Handler configuration.
type Cfg struct {
	Cache     credentials.Cache
	Builder   *passentry.Builder
	Encryptor provision.Encryptor

	// LocalAccounts & RemoteAccounts are used by Status, nil sources are empty.
	LocalAccounts  AccountSource
	RemoteAccounts AccountSource

	RequiresAuthentication bool

	// Telemetry may be nil.
	Telemetry telemetry.Sink
}

// Check returns an error if the Cfg is invalid.
func (self Cfg) Check() error {
	if nil == self.Cache {
		return newError("nil Cache")
	}
	if nil == self.Builder {
		return newError("nil Builder")
	}
	if nil == self.Encryptor {
		return newError("nil Encryptor")
	}

	return nil
}

// Handler implements the host platform callbacks.
// A Handler holds no per call state, it is safe for concurrent use.
type Handler struct {
	cfg Cfg
}

// NewHandler returns a Handler configured by cfg.
func NewHandler(cfg Cfg) (*Handler, error) {
	err := cfg.Check()
	if nil != err {
		return nil, wrapError(err, "invalid Cfg")
	}
	if nil == cfg.Telemetry {
		cfg.Telemetry = telemetry.Nop{}
	}

	return &Handler{cfg: cfg}, nil
}

// Status reports whether eligible credentials exist.
func (self *Handler) Status(ctx context.Context) Status {
	ctx = observability.WithLogAttrs(ctx, "callback", "status")
	log := observability.GetObservability(ctx).Log()

	status := Status{RequiresAuthentication: self.cfg.RequiresAuthentication}
	creds, err := self.cfg.Cache.AllCredentials(ctx)
	if nil != err {
		log.Warn("failed reading credential cache", "error", err)
		return status
	}

	local := installedSuffixes(ctx, log, deviceLocal, self.cfg.LocalAccounts)
	status.Available = len(credentials.Eligible(creds, local)) > 0
	if nil != self.cfg.RemoteAccounts {
		remote := installedSuffixes(ctx, log, deviceRemote, self.cfg.RemoteAccounts)
		status.RemoteAvailable = len(credentials.Eligible(creds, remote)) > 0
	}

	self.cfg.Telemetry.Record(ctx, telemetry.KeyStatus, map[string]any{
		"credentials":     len(creds),
		"available":       status.Available,
		"remoteAvailable": status.RemoteAvailable,
	})

	return status
}

// PassEntries returns the entries that can be provisioned on the local device.
func (self *Handler) PassEntries(ctx context.Context, installed credentials.InstalledSet) []passentry.PassEntry {
	return self.entries(ctx, deviceLocal, installed)
}

// RemotePassEntries returns the entries that can be provisioned on the paired device.
func (self *Handler) RemotePassEntries(ctx context.Context, installed credentials.InstalledSet) []passentry.PassEntry {
	return self.entries(ctx, deviceRemote, installed)
}

// GenerateRequest runs the provisioning handshake for the credential with identifier.
func (self *Handler) GenerateRequest(
	ctx context.Context,
	identifier string,
	certificates [][]byte,
	nonce []byte,
	nonceSignature []byte,
) (*provision.InstallableRequest, error) {
	ctx = observability.WithLogAttrs(ctx, "callback", "generateRequest")

	cfg := provision.Cfg{
		Cache:     self.cfg.Cache,
		Encryptor: self.cfg.Encryptor,
		Telemetry: self.cfg.Telemetry,
	}
	req := provision.Request{
		Identifier:     identifier,
		Certificates:   certificates,
		Nonce:          nonce,
		NonceSignature: nonceSignature,
	}

	return provision.GenerateRequest(ctx, cfg, req)
}

func (self *Handler) entries(ctx context.Context, device string, installed credentials.InstalledSet) []passentry.PassEntry {
	ctx = observability.WithLogAttrs(ctx, "callback", "passEntries", "device", device)
	log := observability.GetObservability(ctx).Log()

	creds, err := self.cfg.Cache.AllCredentials(ctx)
	if nil != err {
		log.Warn("failed reading credential cache", "error", err)
		return []passentry.PassEntry{}
	}

	eligible := credentials.Eligible(creds, installed)
	entries := self.cfg.Builder.Build(ctx, eligible)
	log.Debug(
		"built pass entries",
		"installed", installed.Len(),
		"eligible", len(eligible),
		"entries", len(entries),
	)
	self.cfg.Telemetry.Record(ctx, telemetry.KeyPassEntries, map[string]any{
		"device":   device,
		"eligible": len(eligible),
		"entries":  len(entries),
	})

	return entries
}

func installedSuffixes(ctx context.Context, log *slog.Logger, device string, src AccountSource) credentials.InstalledSet {
	if nil == src {
		return nil
	}
	installed, err := src.InstalledSuffixes(ctx)
	if nil != err {
		log.Warn("failed reading installed accounts", "device", device, "error", err)
		return nil
	}

	return installed
}
