// Package passentry builds the entries a wallet presents to the host platform
// when it lists the payment credentials that can be provisioned.
package passentry

import (
	"strings"

	"code.issuerext.org/golang/pkg/artwork"
	"code.issuerext.org/golang/pkg/credentials"
)

const (
	EncryptionSchemeECCV2 = "ECC_V2"
	StylePayment          = "payment"
)

// AddRequestConfig holds the display configuration the host platform uses
// when adding the payment pass.
type AddRequestConfig struct {
	EncryptionScheme         string `json:"encryptionScheme"`
	PrimaryAccountIdentifier string `json:"primaryAccountIdentifier"`
	CardholderName           string `json:"cardholderName"`
	LocalizedDescription     string `json:"localizedDescription"`
	PrimaryAccountSuffix     string `json:"primaryAccountSuffix"`
	Style                    string `json:"style"`
}

// PassEntry is a credential ready to be presented to the host platform.
type PassEntry struct {
	Identifier string           `json:"identifier"`
	Title      string           `json:"title"`
	Art        artwork.Artwork  `json:"art"`
	Config     AddRequestConfig `json:"addRequestConfiguration"`
}

// New returns the PassEntry of cred displayed with art.
func New(cred credentials.Credential, art artwork.Artwork) (PassEntry, error) {
	err := cred.Check()
	if nil != err {
		return PassEntry{}, wrapError(err, ErrInvalid, "invalid Credential")
	}

	entry := PassEntry{
		Identifier: cred.Identifier,
		Title:      cred.Label,
		Art:        art,
		Config: AddRequestConfig{
			EncryptionScheme:         EncryptionSchemeECCV2,
			PrimaryAccountIdentifier: cred.Identifier,
			CardholderName:           cred.CardholderName,
			LocalizedDescription:     cred.Label,
			PrimaryAccountSuffix:     cred.PrimaryAccountSuffix,
			Style:                    StylePayment,
		},
	}
	err = entry.Check()
	if nil != err {
		return PassEntry{}, err
	}

	return entry, nil
}

// Check returns an error if the PassEntry can not be presented.
func (self PassEntry) Check() error {
	if 0 == len(strings.TrimSpace(self.Identifier)) {
		return newError(ErrInvalid, "empty Identifier")
	}
	if 0 == len(strings.TrimSpace(self.Title)) {
		return newError(ErrInvalid, "empty Title")
	}
	if self.Art.IsZero() {
		return newError(ErrInvalid, "empty Art")
	}
	if "" == self.Config.EncryptionScheme {
		return newError(ErrInvalid, "empty EncryptionScheme")
	}

	return nil
}
