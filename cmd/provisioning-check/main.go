package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	"code.issuerext.org/golang/internal/observability"
	"code.issuerext.org/golang/internal/utils"
	"code.issuerext.org/golang/pkg/artwork"
	"code.issuerext.org/golang/pkg/credentials"
	"code.issuerext.org/golang/pkg/credentials/boltdb"
	"code.issuerext.org/golang/pkg/credentials/pgdb"
	"code.issuerext.org/golang/pkg/extension"
	"code.issuerext.org/golang/pkg/passentry"
	"code.issuerext.org/golang/pkg/protocols/provision"
	"code.issuerext.org/golang/pkg/telemetry"
	tmboltdb "code.issuerext.org/golang/pkg/telemetry/boltdb"
)

const usageFmt = `
Command Usage: %s [Flags] status|entries|remote-entries|generate|events
  Run the provisioning extension callbacks against a credential cache
  and print their result as json.

Flags:
------
`

var commands = []string{"status", "entries", "remote-entries", "generate", "events"}

type Cmd struct {
	Name    string
	Out     *json.Encoder
	Log     *slog.Logger
	Timeout time.Duration

	CachePath  string
	PgDsn      string
	AssetsDir  string
	EncryptUrl string
	EventsPath string
	EventLimit int

	Local  []string
	Remote []string

	Identifier     string
	Certificates   [][]byte
	Nonce          utils.HexBinary
	NonceSignature utils.HexBinary
}

func parseFlags(progname string, args []string) *Cmd {
	cmd := Cmd{}

	flags := flag.NewFlagSet(progname, flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, usageFmt, path.Base(progname))
		flags.PrintDefaults()
	}

	var outPath string
	flags.StringVar(&outPath, "o", "-", `path where to save the json result`)

	var logLevel string
	flags.StringVar(&logLevel, "log", "warn", `log level, one of debug, info, warn, error`)

	flags.DurationVar(&cmd.Timeout, "timeout", 30*time.Second, `maximum duration of the command`)

	const cacheDoc = `
	Credential cache file.
	A .json file is read as a wallet snapshot, other files as a bbolt cache.
	`
	flags.StringVar(&cmd.CachePath, "cache", "", dedent(cacheDoc))
	flags.StringVar(&cmd.PgDsn, "pg", "", `PostgreSQL DSN of the credential cache, replaces -cache`)
	flags.StringVar(&cmd.AssetsDir, "assets", "", `directory holding the bundled card images`)

	const encryptDoc = `
	URL of the remote encryption service.
	Defaults to a local mock service that returns random payloads.
	`
	flags.StringVar(&cmd.EncryptUrl, "encrypt-url", "", dedent(encryptDoc))

	flags.StringVar(&cmd.EventsPath, "events", "", `bbolt file where telemetry events are recorded`)
	flags.IntVar(&cmd.EventLimit, "n", 50, `number of events listed by the events command`)

	const installedDoc = `
	Comma separated primary account suffixes installed on the %s device.
	`
	flags.Func("installed", dedent(fmt.Sprintf(installedDoc, "local")), func(v string) error {
		cmd.Local = append(cmd.Local, splitList(v)...)
		return nil
	})
	flags.Func("remote-installed", dedent(fmt.Sprintf(installedDoc, "paired")), func(v string) error {
		cmd.Remote = append(cmd.Remote, splitList(v)...)
		return nil
	})

	flags.StringVar(&cmd.Identifier, "id", "", `credential identifier used by the generate command`)
	const certDoc = `
	Hex encoded certificate used by the generate command.
	Add more than 1 by repeating this option, leaf first.
	`
	flags.Func("cert", dedent(certDoc), func(v string) error {
		var cert utils.HexBinary
		err := cert.UnmarshalText([]byte(v))
		if nil == err {
			cmd.Certificates = append(cmd.Certificates, cert)
		}
		return err
	})
	flags.TextVar(&cmd.Nonce, "nonce", utils.HexBinary(nil), `hex encoded nonce used by the generate command`)
	flags.TextVar(&cmd.NonceSignature, "signature", utils.HexBinary(nil), `hex encoded nonce signature used by the generate command`)

	flags.Parse(args)

	// set cmd.Name
	if 1 != flags.NArg() {
		flags.Usage()
		os.Exit(2)
	}
	cmd.Name = flags.Arg(0)
	if !slices.Contains(commands, cmd.Name) {
		log.Fatalf("Unknown command %s, expected one of %v", cmd.Name, commands)
	}

	// set cmd.Out
	var err error
	var outFile *os.File
	if "-" != outPath {
		outFile, err = os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if nil != err {
			log.Fatalf("Failed opening %s, got error %v", outPath, err)
		}
	} else {
		outFile = os.Stdout
	}
	enc := json.NewEncoder(outFile)
	enc.SetIndent("", "  ")
	cmd.Out = enc

	// set cmd.Log
	cmd.Log = observability.NewTextLogger(os.Stderr, logLevel)

	return &cmd
}

func main() {
	cmd := parseFlags(os.Args[0], os.Args[1:])

	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()
	ctx = observability.SetObservability(ctx, &observability.Observability{Logger: cmd.Log})

	result, err := cmd.Run(ctx)
	if nil != err {
		log.Fatalf("Failed %s command, got error %v", cmd.Name, err)
	}
	err = cmd.Out.Encode(result)
	if nil != err {
		log.Fatalf("Failed serializing %s result, got error %v", cmd.Name, err)
	}
}

// Run executes the command and returns its json result.
func (self *Cmd) Run(ctx context.Context) (any, error) {
	if "events" == self.Name {
		return self.listEvents(ctx)
	}

	sink, closeSink, err := self.telemetrySink()
	if nil != err {
		return nil, err
	}
	defer closeSink()

	hdlr, closeEncryptor, err := self.newHandler(ctx, sink)
	if nil != err {
		return nil, err
	}
	defer closeEncryptor()

	switch self.Name {
	case "status":
		return hdlr.Status(ctx), nil
	case "entries":
		entries := hdlr.PassEntries(ctx, credentials.NewInstalledSet(self.Local...))
		return makeEntryViews(entries), nil
	case "remote-entries":
		entries := hdlr.RemotePassEntries(ctx, credentials.NewInstalledSet(self.Remote...))
		return makeEntryViews(entries), nil
	case "generate":
		result, err := hdlr.GenerateRequest(ctx, self.Identifier, self.Certificates, self.Nonce, self.NonceSignature)
		if nil != err {
			return nil, err
		}
		return requestView{
			EncryptedPassData:  result.EncryptedPassData,
			ActivationData:     result.ActivationData,
			EphemeralPublicKey: result.EphemeralPublicKey,
		}, nil
	}

	return nil, fmt.Errorf("unknown command %s", self.Name)
}

func (self *Cmd) newHandler(ctx context.Context, sink telemetry.Sink) (*extension.Handler, func(), error) {
	noop := func() {}

	cache, err := self.openCache(ctx, sink)
	if nil != err {
		return nil, noop, err
	}

	bundle := artwork.NewBundle()
	if "" != self.AssetsDir {
		count, err := bundle.AddFS(os.DirFS(self.AssetsDir), "*")
		if nil != err {
			return nil, noop, err
		}
		self.Log.Debug("loaded bundled assets", "dir", self.AssetsDir, "count", count)
	}
	resolver, err := artwork.NewResolver(artwork.Cfg{Bundle: bundle, Telemetry: sink})
	if nil != err {
		return nil, noop, err
	}
	builder, err := passentry.NewBuilder(passentry.Cfg{Resolver: resolver, Telemetry: sink})
	if nil != err {
		return nil, noop, err
	}

	encryptUrl := self.EncryptUrl
	closeEncryptor := noop
	if "" == encryptUrl {
		encryptUrl, closeEncryptor, err = startMockService(self.Log)
		if nil != err {
			return nil, noop, err
		}
	}
	encryptor, err := provision.NewHttpEncryptionClient(encryptUrl, nil)
	if nil != err {
		closeEncryptor()
		return nil, noop, err
	}

	hdlr, err := extension.NewHandler(extension.Cfg{
		Cache:          cache,
		Builder:        builder,
		Encryptor:      encryptor,
		LocalAccounts:  extension.StaticAccounts(self.Local),
		RemoteAccounts: extension.StaticAccounts(self.Remote),
		Telemetry:      sink,
	})
	if nil != err {
		closeEncryptor()
		return nil, noop, err
	}

	return hdlr, closeEncryptor, nil
}

func (self *Cmd) openCache(ctx context.Context, sink telemetry.Sink) (credentials.Cache, error) {
	switch {
	case "" != self.PgDsn:
		cache, err := pgdb.New(ctx, self.PgDsn)
		if nil != err {
			return nil, err
		}
		cache.Telemetry = sink
		return cache, nil
	case "" == self.CachePath:
		return nil, fmt.Errorf("missing -cache or -pg flag")
	case ".json" == strings.ToLower(filepath.Ext(self.CachePath)):
		cache, err := credentials.LoadJSONFile(self.CachePath)
		if nil != err {
			return nil, err
		}
		cache.Telemetry = sink
		return cache, nil
	default:
		cache, err := boltdb.New(self.CachePath)
		if nil != err {
			return nil, err
		}
		cache.Telemetry = sink
		return cache, nil
	}
}

func (self *Cmd) telemetrySink() (telemetry.Sink, func(), error) {
	if "" == self.EventsPath {
		return telemetry.Nop{}, func() {}, nil
	}
	store, err := tmboltdb.New(self.EventsPath)
	if nil != err {
		return nil, nil, err
	}
	sink := telemetry.NewAsyncSink(store, telemetry.AsyncCfg{Logger: self.Log})
	closeSink := func() {
		sink.Close()
		if dropped := sink.Dropped(); dropped > 0 {
			self.Log.Warn("dropped telemetry events", "count", dropped)
		}
		store.Close()
	}

	return sink, closeSink, nil
}

func (self *Cmd) listEvents(ctx context.Context) ([]telemetry.Event, error) {
	if "" == self.EventsPath {
		return nil, fmt.Errorf("missing -events flag")
	}
	store, err := tmboltdb.New(self.EventsPath)
	if nil != err {
		return nil, err
	}
	defer store.Close()

	return store.List(ctx, self.EventLimit)
}

// entryView is the json output of a PassEntry, without image bytes.
type entryView struct {
	Identifier string                     `json:"identifier"`
	Title      string                     `json:"title"`
	ArtSource  artwork.Source             `json:"artSource"`
	ArtFormat  string                     `json:"artFormat"`
	ArtSize    string                     `json:"artSize"`
	Config     passentry.AddRequestConfig `json:"addRequestConfiguration"`
}

func makeEntryViews(entries []passentry.PassEntry) []entryView {
	rv := make([]entryView, len(entries))
	for pos, entry := range entries {
		rv[pos] = entryView{
			Identifier: entry.Identifier,
			Title:      entry.Title,
			ArtSource:  entry.Art.Source,
			ArtFormat:  entry.Art.Format,
			ArtSize:    fmt.Sprintf("%dx%d", entry.Art.Width, entry.Art.Height),
			Config:     entry.Config,
		}
	}
	return rv
}

// requestView is the json output of an InstallableRequest.
type requestView struct {
	EncryptedPassData  utils.HexBinary `json:"encryptedPassData"`
	ActivationData     utils.HexBinary `json:"activationData"`
	EphemeralPublicKey utils.HexBinary `json:"ephemeralPublicKey"`
}

func splitList(v string) []string {
	var rv []string
	for item := range strings.SplitSeq(v, ",") {
		item = strings.TrimSpace(item)
		if "" != item {
			rv = append(rv, item)
		}
	}
	return rv
}

func dedent(multilines string) string {
	var sb strings.Builder
	for line := range strings.Lines(strings.TrimRightFunc(multilines, unicode.IsSpace)) {
		sb.WriteString(strings.TrimLeftFunc(line, unicode.IsSpace))
	}
	return sb.String()
}
