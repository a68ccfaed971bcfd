package credentials

import (
	"context"
	"fmt"

	"code.issuerext.org/golang/internal/observability"
	"code.issuerext.org/golang/pkg/telemetry"
)

// ReportSkipped logs a cached record left out of a snapshot and records a
// credential-skipped event. ref identifies the record, eg its storage key.
// sink may be nil.
func ReportSkipped(ctx context.Context, sink telemetry.Sink, ref string, err error) {
	observability.GetObservability(ctx).Log().Warn(
		"skipped cached credential",
		"ref", ref,
		"error", err,
	)
	if nil == sink {
		return
	}
	sink.Record(ctx, telemetry.KeyCredentialSkip, map[string]any{
		"ref":    ref,
		"reason": ErrInvalid.Error(),
	})
}

// KeepValid returns the valid creds in creds order.
// Each invalid Credential is reported with ReportSkipped.
func KeepValid(ctx context.Context, sink telemetry.Sink, creds []Credential) []Credential {
	rv := make([]Credential, 0, len(creds))
	for pos, cred := range creds {
		err := cred.Check()
		if nil != err {
			ReportSkipped(ctx, sink, credentialRef(pos, cred), err)
			continue
		}
		rv = append(rv, cred)
	}

	return rv
}

func credentialRef(pos int, cred Credential) string {
	if "" == cred.Identifier {
		return fmt.Sprintf("#%d", pos)
	}
	return cred.Identifier
}
