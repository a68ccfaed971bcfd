package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"code.issuerext.org/golang/internal/observability"
	"code.issuerext.org/golang/pkg/protocols/provision"
)

// startMockService serves a mock encryption service on a loopback port.
// It returns the service URL and a function that stops the service.
func startMockService(log *slog.Logger) (string, func(), error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if nil != err {
		return "", nil, err
	}

	hdlr := provision.EncryptionHandler{Encryptor: provision.EncryptorFunc(mockEncrypt)}
	srv := &http.Server{
		Handler:           observability.Middleware{TraceIdHeader: "X-Trace-Id"}.Wrap(hdlr),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			obs := &observability.Observability{Logger: log.With("service", "mock-encryption")}
			return observability.SetObservability(context.Background(), obs)
		},
	}
	go func() {
		err := srv.Serve(listener)
		if nil != err && !errors.Is(err, http.ErrServerClosed) {
			log.Error("mock encryption service stopped", "error", err)
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}

	return "http://" + listener.Addr().String() + "/encrypt", stop, nil
}

// mockEncrypt returns random payloads of realistic sizes.
func mockEncrypt(_ context.Context, _ provision.EncryptionRequest) (provision.EncryptionResponse, error) {
	data := make([]byte, 256)
	activation := make([]byte, 32)
	ephemeral := make([]byte, 65)
	for _, buf := range [][]byte{data, activation, ephemeral} {
		rand.Read(buf)
	}
	ephemeral[0] = 0x04 // uncompressed P-256 point

	return provision.EncryptionResponse{
		Data:               base64.StdEncoding.EncodeToString(data),
		ActivationData:     base64.StdEncoding.EncodeToString(activation),
		EphemeralPublicKey: base64.StdEncoding.EncodeToString(ephemeral),
	}, nil
}
