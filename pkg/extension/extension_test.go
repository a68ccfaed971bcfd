package extension

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"code.issuerext.org/golang/pkg/artwork"
	"code.issuerext.org/golang/pkg/credentials"
	"code.issuerext.org/golang/pkg/passentry"
	"code.issuerext.org/golang/pkg/protocols/provision"
)

func TestNewHandlerInvalidCfg(t *testing.T) {
	cache := newCache(t, 1)
	builder := newBuilder(t)
	testcases := []Cfg{
		{},
		{Cache: cache, Builder: builder},
		{Cache: cache, Encryptor: newEncryptor()},
		{Builder: builder, Encryptor: newEncryptor()},
	}
	for pos, cfg := range testcases {
		_, err := NewHandler(cfg)
		if !errors.Is(err, Error) {
			t.Errorf("#%d: NewHandler did not fail with Error, got %v", pos, err)
		}
	}
}

func TestStatus(t *testing.T) {
	failing := AccountSourceFunc(func(_ context.Context) (credentials.InstalledSet, error) {
		return nil, errors.New("pass library unavailable")
	})

	testcases := []struct {
		name   string
		cache  credentials.Cache
		local  AccountSource
		remote AccountSource
		expect Status
	}{
		{
			name:   "nothing installed",
			cache:  newCache(t, 3),
			expect: Status{Available: true},
		},
		{
			name:   "all installed locally",
			cache:  newCache(t, 3),
			local:  StaticAccounts{"1000", "1001", "1002"},
			remote: StaticAccounts{"1000"},
			expect: Status{Available: false, RemoteAvailable: true},
		},
		{
			name:   "all installed everywhere",
			cache:  newCache(t, 2),
			local:  StaticAccounts{"1000", "1001"},
			remote: StaticAccounts{"1001", "1000"},
			expect: Status{},
		},
		{
			name:   "failing sources",
			cache:  newCache(t, 1),
			local:  failing,
			remote: failing,
			expect: Status{Available: true, RemoteAvailable: true},
		},
		{
			name:   "empty cache",
			cache:  newCache(t, 0),
			expect: Status{},
		},
		{
			name:   "cache failure",
			cache:  failingCache{},
			remote: StaticAccounts{},
			expect: Status{},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			hdlr := newHandler(t, Cfg{Cache: tc.cache, LocalAccounts: tc.local, RemoteAccounts: tc.remote})
			status := hdlr.Status(t.Context())
			if tc.expect != status {
				t.Errorf("failed Status control, got %+v expected %+v", status, tc.expect)
			}
		})
	}
}

func TestStatusRequiresAuthentication(t *testing.T) {
	hdlr := newHandler(t, Cfg{Cache: newCache(t, 1), RequiresAuthentication: true})
	status := hdlr.Status(t.Context())
	if !status.RequiresAuthentication || !status.Available {
		t.Errorf("failed Status control, got %+v", status)
	}
}

func TestPassEntries(t *testing.T) {
	hdlr := newHandler(t, Cfg{Cache: newCache(t, 4)})

	entries := hdlr.PassEntries(t.Context(), credentials.NewInstalledSet("1001", "1003"))
	if ids := identifiers(entries); !reflect.DeepEqual([]string{"card-00", "card-02"}, ids) {
		t.Errorf("failed PassEntries control, got %v", ids)
	}
	for _, entry := range entries {
		if artwork.SourceDefault != entry.Art.Source {
			t.Errorf("%s: failed Art control, got %s", entry.Identifier, entry.Art.Source)
		}
	}

	entries = hdlr.PassEntries(t.Context(), nil)
	if 4 != len(entries) {
		t.Errorf("failed PassEntries with empty installed set, got %d entries", len(entries))
	}
}

func TestLocalAndRemoteEntriesAreIndependent(t *testing.T) {
	hdlr := newHandler(t, Cfg{Cache: newCache(t, 3)})
	local := credentials.NewInstalledSet("1000")
	remote := credentials.NewInstalledSet("1001", "1002")

	var wg sync.WaitGroup
	var localIds, remoteIds [][]string
	var mut sync.Mutex
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ids := identifiers(hdlr.PassEntries(t.Context(), local))
			mut.Lock()
			localIds = append(localIds, ids)
			mut.Unlock()
		}()
		go func() {
			defer wg.Done()
			ids := identifiers(hdlr.RemotePassEntries(t.Context(), remote))
			mut.Lock()
			remoteIds = append(remoteIds, ids)
			mut.Unlock()
		}()
	}
	wg.Wait()

	for _, ids := range localIds {
		if !reflect.DeepEqual([]string{"card-01", "card-02"}, ids) {
			t.Errorf("failed local entries control, got %v", ids)
		}
	}
	for _, ids := range remoteIds {
		if !reflect.DeepEqual([]string{"card-00"}, ids) {
			t.Errorf("failed remote entries control, got %v", ids)
		}
	}
}

func TestEntriesCacheFailure(t *testing.T) {
	hdlr := newHandler(t, Cfg{Cache: failingCache{}})

	for _, entries := range [][]passentry.PassEntry{
		hdlr.PassEntries(t.Context(), nil),
		hdlr.RemotePassEntries(t.Context(), nil),
	} {
		if nil == entries || 0 != len(entries) {
			t.Errorf("failed cache failure control, got %#v", entries)
		}
	}
}

func TestInvalidCachedCredentialIsIsolated(t *testing.T) {
	cache, err := credentials.LoadJSON([]byte(`[
	  {"identifier":"card-a","label":"Gold","primaryAccountSuffix":"4242","token":"tok-a"},
	  {"identifier":"card-b","label":"","primaryAccountSuffix":"1881","token":"tok-b"},
	  {"identifier":"card-c","label":"Silver","primaryAccountSuffix":"3003","token":"tok-c"}
	]`))
	if nil != err {
		t.Fatalf("failed LoadJSON, got error %v", err)
	}
	hdlr := newHandler(t, Cfg{Cache: cache})

	if status := hdlr.Status(t.Context()); !status.Available {
		t.Errorf("failed Status control, got %+v", status)
	}
	expect := []string{"card-a", "card-c"}
	if ids := identifiers(hdlr.PassEntries(t.Context(), nil)); !reflect.DeepEqual(expect, ids) {
		t.Errorf("failed PassEntries control, got %v", ids)
	}
	if ids := identifiers(hdlr.RemotePassEntries(t.Context(), nil)); !reflect.DeepEqual(expect, ids) {
		t.Errorf("failed RemotePassEntries control, got %v", ids)
	}

	_, err = hdlr.GenerateRequest(t.Context(), "card-c", [][]byte{[]byte("leaf")}, []byte("nonce"), []byte("signature"))
	if nil != err {
		t.Errorf("failed GenerateRequest for a valid credential, got error %v", err)
	}
	_, err = hdlr.GenerateRequest(t.Context(), "card-b", [][]byte{[]byte("leaf")}, []byte("nonce"), []byte("signature"))
	if !errors.Is(err, provision.ErrNoToken) {
		t.Errorf("GenerateRequest for an invalid credential did not fail with ErrNoToken, got %v", err)
	}
}

func TestGenerateRequest(t *testing.T) {
	hdlr := newHandler(t, Cfg{Cache: newCache(t, 2)})
	certs := [][]byte{[]byte("leaf"), []byte("intermediate")}

	result, err := hdlr.GenerateRequest(t.Context(), "card-01", certs, []byte("nonce"), []byte("signature"))
	if nil != err {
		t.Fatalf("failed GenerateRequest, got error %v", err)
	}
	if "pass:card-01" != string(result.EncryptedPassData) {
		t.Errorf("failed EncryptedPassData control, got %q", result.EncryptedPassData)
	}

	result, err = hdlr.GenerateRequest(t.Context(), "card-42", certs, []byte("nonce"), []byte("signature"))
	if !errors.Is(err, provision.ErrNoToken) || nil != result {
		t.Errorf("GenerateRequest did not fail with ErrNoToken, got (%v, %v)", result, err)
	}
}

func identifiers(entries []passentry.PassEntry) []string {
	rv := make([]string, len(entries))
	for pos, entry := range entries {
		rv[pos] = entry.Identifier
	}
	return rv
}

func newHandler(t *testing.T, cfg Cfg) *Handler {
	if nil == cfg.Builder {
		cfg.Builder = newBuilder(t)
	}
	if nil == cfg.Encryptor {
		cfg.Encryptor = newEncryptor()
	}
	hdlr, err := NewHandler(cfg)
	if nil != err {
		t.Fatalf("failed NewHandler, got error %v", err)
	}
	return hdlr
}

func newBuilder(t *testing.T) *passentry.Builder {
	resolver, err := artwork.NewResolver(artwork.Cfg{})
	if nil != err {
		t.Fatalf("failed artwork.NewResolver, got error %v", err)
	}
	builder, err := passentry.NewBuilder(passentry.Cfg{Resolver: resolver})
	if nil != err {
		t.Fatalf("failed passentry.NewBuilder, got error %v", err)
	}
	return builder
}

func newEncryptor() provision.Encryptor {
	b64 := base64.StdEncoding.EncodeToString
	return provision.EncryptorFunc(func(_ context.Context, req provision.EncryptionRequest) (provision.EncryptionResponse, error) {
		return provision.EncryptionResponse{
			Data:               b64([]byte("pass:" + req.CardId)),
			ActivationData:     b64([]byte("activation")),
			EphemeralPublicKey: b64([]byte{0x04, 0x01}),
		}, nil
	})
}

func newCache(t *testing.T, n int) credentials.Cache {
	creds := make([]credentials.Credential, n)
	for i := range n {
		creds[i] = credentials.Credential{
			Identifier:           fmt.Sprintf("card-%02d", i),
			Label:                fmt.Sprintf("Card %d", i),
			CardholderName:       "Jane Doe",
			PrimaryAccountSuffix: fmt.Sprintf("%04d", 1000+i),
			Token:                fmt.Sprintf("token-%02d", i),
		}
	}
	cache, err := credentials.NewMemCache(creds...)
	if nil != err {
		t.Fatalf("failed NewMemCache, got error %v", err)
	}
	return cache
}

type failingCache struct{}

func (self failingCache) AllCredentials(_ context.Context) ([]credentials.Credential, error) {
	return nil, errors.New("shared defaults unavailable")
}
