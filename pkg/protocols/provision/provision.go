// Package provision implements the handshake that turns a host platform
// certificate/nonce challenge into an installable encrypted pass payload.
//
// The handshake is a single pass through the states
//
//	Idle -> TokenLookup -> RemoteEncryption -> ResponseValidation -> RequestAssembly -> Done
//
// and stops in Failed on the first error. It is never retried internally.
package provision

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"

	"code.issuerext.org/golang/internal/observability"
	"code.issuerext.org/golang/pkg/credentials"
	"code.issuerext.org/golang/pkg/protocols"
	"code.issuerext.org/golang/pkg/telemetry"
)

// Step identifies the handshake position.
type Step int

const (
	Idle Step = iota
	TokenLookup
	RemoteEncryption
	ResponseValidation
	RequestAssembly
	Done
	Failed
)

var stepNames = [...]string{
	"Idle",
	"TokenLookup",
	"RemoteEncryption",
	"ResponseValidation",
	"RequestAssembly",
	"Done",
	"Failed",
}

func (self Step) String() string {
	if self < 0 || int(self) >= len(stepNames) {
		return "Unknown"
	}
	return stepNames[self]
}

// Encryptor encrypts pass data for the host platform.
// It is implemented by HttpEncryptionClient.
type Encryptor interface {
	Encrypt(ctx context.Context, req EncryptionRequest) (EncryptionResponse, error)
}

// EncryptorFunc adapts a function to the Encryptor interface.
type EncryptorFunc func(ctx context.Context, req EncryptionRequest) (EncryptionResponse, error)

func (self EncryptorFunc) Encrypt(ctx context.Context, req EncryptionRequest) (EncryptionResponse, error) {
	return self(ctx, req)
}

type StateFunc = protocols.StateFunc[*State]

type ExitFunc = protocols.ExitFunc[*State]

// Cfg holds handshake configuration.
type Cfg struct {
	// Cache holds the credential tokens, required.
	Cache credentials.Cache

	// Encryptor is the remote encryption collaborator, required.
	Encryptor Encryptor

	// Telemetry receives a handshake event at completion, may be nil.
	Telemetry telemetry.Sink
}

// Check returns an error if the Cfg is invalid.
func (self Cfg) Check() error {
	if nil == self.Cache {
		return newError(Error, "nil Cache")
	}
	if nil == self.Encryptor {
		return newError(Error, "nil Encryptor")
	}

	return nil
}

// State holds a single handshake run.
type State struct {
	Cfg
	Request Request

	// Step is the current handshake position.
	Step Step

	// FailedAt is the Step that failed, Idle unless Step is Failed.
	FailedAt Step

	// Reason is the failure flag, nil unless Step is Failed.
	Reason error

	log     *slog.Logger
	cred    credentials.Credential
	resp    EncryptionResponse
	decoded [3][]byte
	result  *InstallableRequest
	next    StateFunc
	exh     ExitFunc
}

// NewState returns an Idle State ready to run req.
func NewState(cfg Cfg, req Request) (*State, error) {
	err := cfg.Check()
	if nil != err {
		return nil, wrapError(err, Error, "invalid Cfg")
	}
	if nil == cfg.Telemetry {
		cfg.Telemetry = telemetry.Nop{}
	}

	rv := &State{
		Cfg:     cfg,
		Request: req,
		Step:    Idle,
		log:     slog.Default(),
		next:    LookupToken,
		exh:     exitState,
	}

	return rv, nil
}

// Result returns the InstallableRequest of a completed handshake.
func (self *State) Result() (*InstallableRequest, bool) {
	return self.result, Done == self.Step && nil != self.result
}

// protocols.Fsm implementation

func (self *State) State() (*State, StateFunc) {
	return self, self.next
}

func (self *State) SetState(sf StateFunc) {
	self.next = sf
}

func (self *State) ExitHandler() ExitFunc {
	return self.exh
}

func (self *State) SetExitHandler(ef ExitFunc) {
	self.exh = ef
}

var _ protocols.Fsm[*State] = &State{}

// GenerateRequest runs the handshake for req.
// The returned error carries ErrNoToken, ErrEncryptionFailed or ErrMalformedResponse.
func GenerateRequest(ctx context.Context, cfg Cfg, req Request) (*InstallableRequest, error) {
	state, err := NewState(cfg, req)
	if nil != err {
		return nil, err
	}
	state.log = observability.GetObservability(ctx).Log()

	err = protocols.Run(ctx, state)
	if nil != err {
		return nil, err
	}
	result, ok := state.Result()
	if !ok {
		return nil, newError(Error, "handshake completed without result")
	}

	return result, nil
}

// State functions

// LookupToken loads the token of the requested credential.
func LookupToken(ctx context.Context, self *State) (StateFunc, error) {
	self.Step = TokenLookup
	log := observability.GetObservability(ctx).Log().With("state", self.Step)

	creds, err := self.Cache.AllCredentials(ctx)
	if nil != err {
		log.Debug("failed reading credential cache", "error", err)
		return nil, wrapError(err, ErrNoToken, "credential cache unavailable")
	}
	cred, found := credentials.Find(creds, self.Request.Identifier)
	if !found {
		return nil, newError(ErrNoToken, "unknown credential %q", self.Request.Identifier)
	}
	if !cred.HasToken() {
		return nil, newError(ErrNoToken, "credential %q has no token", self.Request.Identifier)
	}
	self.cred = cred

	return EncryptRemotely, nil
}

// EncryptRemotely calls the Encryptor.
func EncryptRemotely(ctx context.Context, self *State) (StateFunc, error) {
	self.Step = RemoteEncryption
	log := observability.GetObservability(ctx).Log().With("state", self.Step)

	encreq := EncryptionRequest{
		CardId:         self.cred.Identifier,
		Token:          self.cred.Token,
		IsTestnet:      self.cred.IsTestnet,
		Certificates:   self.Request.Certificates,
		Nonce:          self.Request.Nonce,
		NonceSignature: self.Request.NonceSignature,
	}
	err := encreq.Check()
	if nil != err {
		return nil, wrapError(err, ErrEncryptionFailed, "invalid EncryptionRequest")
	}
	if err = ctx.Err(); nil != err {
		return nil, wrapError(err, ErrEncryptionFailed, "handshake cancelled")
	}

	log.Debug("requesting remote encryption", "testnet", encreq.IsTestnet, "certificates", len(encreq.Certificates))
	resp, err := self.Encryptor.Encrypt(ctx, encreq)
	if nil != err {
		if errors.Is(err, ErrMalformedResponse) {
			// an undecodable response body fails validation
			self.Step = ResponseValidation
			return nil, err
		}
		return nil, wrapError(err, ErrEncryptionFailed, "failed Encrypt")
	}
	if "" != resp.Error {
		return nil, newError(ErrEncryptionFailed, "encryption refused: %s", resp.Error)
	}
	self.resp = resp

	return ValidateResponse, nil
}

// ValidateResponse decodes the 3 response fields, it fails if any of them is invalid.
func ValidateResponse(_ context.Context, self *State) (StateFunc, error) {
	self.Step = ResponseValidation

	fields := [3]struct {
		name  string
		value string
	}{
		{name: "data", value: self.resp.Data},
		{name: "activationData", value: self.resp.ActivationData},
		{name: "ephemeralPublicKey", value: self.resp.EphemeralPublicKey},
	}
	var decoded [3][]byte
	var errs []error
	for pos, field := range fields {
		if "" == field.value {
			errs = append(errs, newError(ErrMalformedResponse, "missing %s", field.name))
			continue
		}
		data, err := base64.StdEncoding.DecodeString(field.value)
		if nil != err {
			errs = append(errs, wrapError(err, ErrMalformedResponse, "invalid %s", field.name))
			continue
		}
		decoded[pos] = data
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	self.decoded = decoded

	return AssembleRequest, nil
}

// AssembleRequest builds the InstallableRequest.
func AssembleRequest(_ context.Context, self *State) (StateFunc, error) {
	self.Step = RequestAssembly

	self.result = &InstallableRequest{
		EncryptedPassData:  self.decoded[0],
		ActivationData:     self.decoded[1],
		EphemeralPublicKey: self.decoded[2],
	}
	self.Step = Done

	return nil, protocols.Done("assembled InstallableRequest")
}

// exitState records the handshake outcome.
func exitState(self *State, err error) {
	ctx := context.Background()
	log := self.log

	fields := map[string]any{
		"identifier": self.Request.Identifier,
	}
	if "" != self.cred.Token {
		fields["token"] = telemetry.Fingerprint(self.cred.Token)
	}

	if nil == err {
		self.Step = Done
		fields["outcome"] = Done.String()
		log.Info("provisioning handshake completed", "identifier", self.Request.Identifier)
	} else {
		self.FailedAt = self.Step
		self.Step = Failed
		self.Reason = Reason(err)
		if nil == self.Reason {
			self.Reason = Error
		}
		self.result = nil
		fields["outcome"] = Failed.String()
		fields["step"] = self.FailedAt.String()
		fields["reason"] = self.Reason.Error()
		log.Warn(
			"provisioning handshake failed",
			"identifier", self.Request.Identifier,
			"step", self.FailedAt,
			"error", err,
		)
	}

	self.Telemetry.Record(ctx, telemetry.KeyHandshake, fields)
}
