package credentials

import (
	"context"
	"os"
	"slices"
	"sync"

	"code.issuerext.org/golang/internal/transport"
	"code.issuerext.org/golang/pkg/telemetry"
)

// Cache gives read access to the Credentials known to the wallet.
type Cache interface {
	// AllCredentials returns a point in time snapshot of the cached Credentials.
	// The returned slice belongs to the caller.
	AllCredentials(ctx context.Context) ([]Credential, error)
}

// CacheWriter is used by the wallet application to populate a Cache.
// The provisioning extension never calls it.
type CacheWriter interface {
	// SaveCredential saves cred, replacing any Credential with same Identifier.
	// It errors if cred is invalid.
	SaveCredential(ctx context.Context, cred Credential) error

	// RemoveCredential removes the Credential with identifier.
	// It returns true if the Credential was effectively removed.
	RemoveCredential(ctx context.Context, identifier string) (bool, error)
}

// MemCache provides "in memory" implementation of Cache & CacheWriter.
// It keeps Credentials in insertion order.
type MemCache struct {
	// Telemetry receives a credential-skipped event per invalid Credential, may be nil.
	Telemetry telemetry.Sink

	mut   sync.RWMutex
	creds []Credential
}

// NewMemCache returns a MemCache holding creds.
// It errors if 2 Credentials share the same Identifier. Invalid Credentials are
// kept but left out of AllCredentials snapshots.
func NewMemCache(creds ...Credential) (*MemCache, error) {
	seen := make(map[string]struct{}, len(creds))
	for _, cred := range creds {
		if "" == cred.Identifier {
			continue
		}
		if _, dup := seen[cred.Identifier]; dup {
			return nil, newFlagError(ErrDuplicateId, "Identifier %q is not unique", cred.Identifier)
		}
		seen[cred.Identifier] = struct{}{}
	}

	return &MemCache{creds: slices.Clone(creds)}, nil
}

// LoadJSON returns a MemCache holding the Credentials of a json snapshot.
// It errors if the snapshot is not a json array of Credentials.
func LoadJSON(data []byte) (*MemCache, error) {
	var creds []Credential
	err := transport.JSONSerializer{}.Unmarshal(data, &creds)
	if nil != err {
		return nil, wrapError(err, "failed json Unmarshal of Credentials")
	}

	return NewMemCache(creds...)
}

// LoadJSONFile returns a MemCache holding the Credentials of the json snapshot at path.
func LoadJSONFile(path string) (*MemCache, error) {
	data, err := os.ReadFile(path)
	if nil != err {
		return nil, wrapError(err, "failed reading %s", path)
	}

	return LoadJSON(data)
}

// AllCredentials returns a copy of the MemCache valid Credentials.
func (self *MemCache) AllCredentials(ctx context.Context) ([]Credential, error) {
	self.mut.RLock()
	creds := slices.Clone(self.creds)
	self.mut.RUnlock()

	return KeepValid(ctx, self.Telemetry, creds), nil
}

// SaveCredential saves cred in the MemCache.
func (self *MemCache) SaveCredential(_ context.Context, cred Credential) error {
	err := cred.Check()
	if nil != err {
		return wrapFlagError(err, ErrInvalid, "can not save Credential")
	}

	self.mut.Lock()
	defer self.mut.Unlock()

	pos := slices.IndexFunc(self.creds, func(c Credential) bool { return c.Identifier == cred.Identifier })
	if pos >= 0 {
		self.creds[pos] = cred
	} else {
		self.creds = append(self.creds, cred)
	}

	return nil
}

// RemoveCredential removes the Credential with identifier from the MemCache.
func (self *MemCache) RemoveCredential(_ context.Context, identifier string) (bool, error) {
	self.mut.Lock()
	defer self.mut.Unlock()

	size := len(self.creds)
	self.creds = slices.DeleteFunc(self.creds, func(c Credential) bool { return c.Identifier == identifier })

	return len(self.creds) != size, nil
}

var (
	_ Cache       = &MemCache{}
	_ CacheWriter = &MemCache{}
)
