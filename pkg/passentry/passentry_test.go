package passentry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"code.issuerext.org/golang/pkg/artwork"
	"code.issuerext.org/golang/pkg/credentials"
)

func TestNew(t *testing.T) {
	cred := makeCredentials(1)[0]
	entry, err := New(cred, artwork.Default())
	if nil != err {
		t.Fatalf("failed New, got error %v", err)
	}

	expect := AddRequestConfig{
		EncryptionScheme:         "ECC_V2",
		PrimaryAccountIdentifier: cred.Identifier,
		CardholderName:           cred.CardholderName,
		LocalizedDescription:     cred.Label,
		PrimaryAccountSuffix:     cred.PrimaryAccountSuffix,
		Style:                    "payment",
	}
	if expect != entry.Config {
		t.Errorf("failed Config control, got %+v", entry.Config)
	}
	if cred.Identifier != entry.Identifier || cred.Label != entry.Title {
		t.Errorf("failed entry control, got %+v", entry)
	}
}

func TestNewInvalid(t *testing.T) {
	cred := makeCredentials(1)[0]

	_, err := New(cred, artwork.Artwork{})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("New with empty Art did not fail with ErrInvalid, got %v", err)
	}

	cred.Label = ""
	_, err = New(cred, artwork.Default())
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("New with empty Label did not fail with ErrInvalid, got %v", err)
	}
}

func TestCfgCheck(t *testing.T) {
	testcases := []Cfg{
		{},
		{Resolver: &fakeResolver{}, MaxConcurrency: -1},
	}
	for pos, cfg := range testcases {
		_, err := NewBuilder(cfg)
		if nil == err {
			t.Errorf("#%d: NewBuilder did not fail", pos)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	resolver := &fakeResolver{}
	builder := newBuilder(t, Cfg{Resolver: resolver})

	for _, creds := range [][]credentials.Credential{nil, {}} {
		entries := builder.Build(t.Context(), creds)
		if nil == entries || 0 != len(entries) {
			t.Errorf("failed empty Build control, got %#v", entries)
		}
	}
	if 0 != resolver.calls.Load() {
		t.Errorf("Build of empty input resolved artwork %d times", resolver.calls.Load())
	}
}

func TestBuildPreservesOrder(t *testing.T) {
	creds := makeCredentials(40)
	resolver := &fakeResolver{jitter: true}
	builder := newBuilder(t, Cfg{Resolver: resolver, MaxConcurrency: 4})

	entries := builder.Build(t.Context(), creds)
	if len(creds) != len(entries) {
		t.Fatalf("failed size control, got %d entries", len(entries))
	}
	for pos, entry := range entries {
		if creds[pos].Identifier != entry.Identifier {
			t.Errorf("#%d: failed order control, got %s", pos, entry.Identifier)
		}
	}
	if peak := resolver.peak.Load(); peak > 4 {
		t.Errorf("MaxConcurrency exceeded, got %d", peak)
	}
}

func TestBuildRunsConcurrently(t *testing.T) {
	const n = 8
	arrived := make(chan struct{}, n)
	release := make(chan struct{})
	var once sync.Once
	resolver := &fakeResolver{
		hook: func() {
			arrived <- struct{}{}
			if n == len(arrived) {
				once.Do(func() { close(release) })
			}
			select {
			case <-release:
			case <-time.After(2 * time.Second):
				panic("builds are not concurrent")
			}
		},
	}
	builder := newBuilder(t, Cfg{Resolver: resolver})

	entries := builder.Build(t.Context(), makeCredentials(n))
	if n != len(entries) {
		t.Errorf("failed size control, got %d entries", len(entries))
	}
}

func TestBuildDropsFailures(t *testing.T) {
	creds := makeCredentials(6)
	// invalid Credential
	creds[1].Label = " "
	// fakeResolver panics
	creds[3].Identifier = "card-panic"
	sink := &recordSink{}
	resolver := &fakeResolver{panicOn: "card-panic"}
	builder := newBuilder(t, Cfg{Resolver: resolver, Telemetry: sink})

	entries := builder.Build(t.Context(), creds)
	ids := make([]string, len(entries))
	for pos, entry := range entries {
		ids[pos] = entry.Identifier
	}
	if "card-00,card-02,card-04,card-05" != strings.Join(ids, ",") {
		t.Errorf("failed drop control, got %v", ids)
	}

	reasons := sink.reasons()
	if 2 != len(reasons) {
		t.Fatalf("failed telemetry control, got %v", reasons)
	}
	if "passentry: invalid PassEntry" != reasons["card-01"] {
		t.Errorf("failed card-01 reason control, got %q", reasons["card-01"])
	}
	if "passentry: build panicked" != reasons["card-panic"] {
		t.Errorf("failed card-panic reason control, got %q", reasons["card-panic"])
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	builder := newBuilder(t, Cfg{Resolver: &fakeResolver{}})
	entries := builder.Build(ctx, makeCredentials(5))
	if 0 != len(entries) {
		t.Errorf("cancelled Build returned %d entries", len(entries))
	}
}

func TestBuildArtworkFailuresKeepBatchSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/broken") {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(artwork.Default().Data)
	}))
	defer srv.Close()

	creds := makeCredentials(10)
	var broken int
	for pos := range creds {
		if 0 == pos%3 {
			creds[pos].AssetUrl = fmt.Sprintf("%s/broken/%d.png", srv.URL, pos)
			broken += 1
		} else {
			creds[pos].AssetUrl = fmt.Sprintf("%s/ok/%d.png", srv.URL, pos)
		}
	}

	resolver, err := artwork.NewResolver(artwork.Cfg{FetchTimeout: time.Second})
	if nil != err {
		t.Fatalf("failed artwork.NewResolver, got error %v", err)
	}
	builder := newBuilder(t, Cfg{Resolver: resolver})

	entries := builder.Build(t.Context(), creds)
	if len(creds) != len(entries) {
		t.Fatalf("failed size control, got %d entries", len(entries))
	}
	var fallbacks int
	for _, entry := range entries {
		if artwork.SourceDefault == entry.Art.Source {
			fallbacks += 1
		}
	}
	if broken != fallbacks {
		t.Errorf("failed fallback control, got %d expected %d", fallbacks, broken)
	}
}

func newBuilder(t *testing.T, cfg Cfg) *Builder {
	builder, err := NewBuilder(cfg)
	if nil != err {
		t.Fatalf("failed NewBuilder, got error %v", err)
	}
	return builder
}

func makeCredentials(n int) []credentials.Credential {
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
	return creds
}

type fakeResolver struct {
	jitter  bool
	panicOn string
	hook    func()
	calls   atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
}

func (self *fakeResolver) Resolve(_ context.Context, cred credentials.Credential) artwork.Artwork {
	self.calls.Add(1)
	cur := self.active.Add(1)
	defer self.active.Add(-1)
	for {
		peak := self.peak.Load()
		if cur <= peak || self.peak.CompareAndSwap(peak, cur) {
			break
		}
	}

	if cred.Identifier == self.panicOn {
		panic("resolver failure")
	}
	if nil != self.hook {
		self.hook()
	}
	if self.jitter {
		time.Sleep(time.Duration(len(cred.Identifier)+int(cred.PrimaryAccountSuffix[3]-'0')) * time.Millisecond)
	}

	return artwork.Default()
}

type recordSink struct {
	mut    sync.Mutex
	fields []map[string]any
}

func (self *recordSink) Record(_ context.Context, _ string, fields map[string]any) {
	self.mut.Lock()
	defer self.mut.Unlock()
	self.fields = append(self.fields, fields)
}

func (self *recordSink) reasons() map[string]string {
	self.mut.Lock()
	defer self.mut.Unlock()
	rv := make(map[string]string, len(self.fields))
	for _, f := range self.fields {
		rv[f["identifier"].(string)] = f["reason"].(string)
	}
	return rv
}
