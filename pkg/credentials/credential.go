// Package credentials holds the payment credentials a wallet offers for provisioning
// and computes which of them are eligible on a given device.
package credentials

import (
	"strings"
)

// Credential is one payment credential known to the wallet.
//
// Credentials are written by the wallet application (cache population) and are
// read-only for the provisioning extension. The json encoding is the one used
// by the wallet application shared snapshot.
type Credential struct {
	Identifier           string `json:"identifier" cbor:"1,keyasint"`
	Label                string `json:"label" cbor:"2,keyasint"`
	CardholderName       string `json:"cardholderName" cbor:"3,keyasint"`
	PrimaryAccountSuffix string `json:"primaryAccountSuffix" cbor:"4,keyasint"`
	Token                string `json:"token,omitempty" cbor:"5,keyasint,omitempty"` // empty if absent
	IsTestnet            bool   `json:"isTestnet" cbor:"6,keyasint"`
	AssetUrl             string `json:"assetUrl,omitempty" cbor:"7,keyasint,omitempty"`
	AssetName            string `json:"assetName,omitempty" cbor:"8,keyasint,omitempty"`
}

// Check returns an error if the Credential is invalid.
func (self Credential) Check() error {
	if 0 == len(strings.TrimSpace(self.Identifier)) {
		return newError("Empty Identifier")
	}
	if 0 == len(strings.TrimSpace(self.Label)) {
		return newError("Empty Label")
	}

	return nil
}

// HasToken returns true if the Credential can be used in a provisioning handshake.
func (self Credential) HasToken() bool {
	return "" != self.Token
}

// Find returns the first Credential in creds having identifier.
func Find(creds []Credential, identifier string) (Credential, bool) {
	for _, cred := range creds {
		if cred.Identifier == identifier {
			return cred, true
		}
	}

	return Credential{}, false
}
