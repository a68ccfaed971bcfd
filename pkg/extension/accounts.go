package extension

import (
	"context"

	"code.issuerext.org/golang/pkg/credentials"
)

// AccountSource reports the primary account suffixes already provisioned on a device.
type AccountSource interface {
	InstalledSuffixes(ctx context.Context) (credentials.InstalledSet, error)
}

// AccountSourceFunc adapts a function to the AccountSource interface.
type AccountSourceFunc func(ctx context.Context) (credentials.InstalledSet, error)

func (self AccountSourceFunc) InstalledSuffixes(ctx context.Context) (credentials.InstalledSet, error) {
	return self(ctx)
}

// StaticAccounts is an AccountSource holding a fixed list of suffixes.
type StaticAccounts []string

func (self StaticAccounts) InstalledSuffixes(_ context.Context) (credentials.InstalledSet, error) {
	return credentials.NewInstalledSet(self...), nil
}

var (
	_ AccountSource = AccountSourceFunc(nil)
	_ AccountSource = StaticAccounts(nil)
)
