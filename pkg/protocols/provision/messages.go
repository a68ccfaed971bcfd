package provision

import (
	"code.issuerext.org/golang/internal/transport"
)

var jsonSrz = transport.WrapInSafeSerializer(transport.JSONSerializer{})

// Request holds the host platform inputs of a provisioning handshake.
type Request struct {
	Identifier     string
	Certificates   [][]byte // leaf first
	Nonce          []byte
	NonceSignature []byte
}

// EncryptionRequest is sent to the remote encryption service.
// Binary fields are transported as standard base64.
type EncryptionRequest struct {
	CardId         string   `json:"cardId"`
	Token          string   `json:"token"`
	IsTestnet      bool     `json:"isTestnet"`
	Certificates   [][]byte `json:"certificates"`
	Nonce          []byte   `json:"nonce"`
	NonceSignature []byte   `json:"nonceSignature"`
}

// Check returns an error if the EncryptionRequest is invalid.
func (self EncryptionRequest) Check() error {
	if "" == self.CardId {
		return newError(Error, "empty CardId")
	}
	if "" == self.Token {
		return newError(Error, "empty Token")
	}
	if 0 == len(self.Certificates) {
		return newError(Error, "empty Certificates")
	}
	for pos, cert := range self.Certificates {
		if 0 == len(cert) {
			return newError(Error, "empty certificate #%d", pos)
		}
	}
	if 0 == len(self.Nonce) {
		return newError(Error, "empty Nonce")
	}
	if 0 == len(self.NonceSignature) {
		return newError(Error, "empty NonceSignature")
	}

	return nil
}

// EncryptionResponse is returned by the remote encryption service.
// Data, ActivationData & EphemeralPublicKey are standard base64 texts.
// Error is set when the service refused the request.
type EncryptionResponse struct {
	Data               string `json:"data,omitempty"`
	ActivationData     string `json:"activationData,omitempty"`
	EphemeralPublicKey string `json:"ephemeralPublicKey,omitempty"`
	Error              string `json:"error,omitempty"`
}

// InstallableRequest is the encrypted pass payload handed to the host platform.
type InstallableRequest struct {
	EncryptedPassData  []byte `json:"encryptedPassData"`
	ActivationData     []byte `json:"activationData"`
	EphemeralPublicKey []byte `json:"ephemeralPublicKey"`
}
