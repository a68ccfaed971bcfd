package provision

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"slices"

	"code.issuerext.org/golang/internal/observability"
	"code.issuerext.org/golang/internal/transport"
)

const maxBodySize = 1 << 20

// httpClient is a private interface that simplify mocking http.Client.
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HttpEncryptionClient is an Encryptor that posts EncryptionRequests to a remote service.
type HttpEncryptionClient struct {
	client    httpClient
	serverUrl string
}

// NewHttpEncryptionClient returns an HttpEncryptionClient that posts to serverUrl using cli.
// http.DefaultClient is used if cli is nil.
func NewHttpEncryptionClient(serverUrl string, cli httpClient) (*HttpEncryptionClient, error) {
	srvUrl, err := url.Parse(serverUrl)
	if nil != err {
		return nil, wrapError(err, Error, "invalid serverUrl")
	}
	if !slices.Contains([]string{"http", "https"}, srvUrl.Scheme) {
		return nil, newError(Error, "invalid serverUrl scheme %s", srvUrl.Scheme)
	}
	if nil == cli {
		cli = http.DefaultClient
	}

	return &HttpEncryptionClient{client: cli, serverUrl: serverUrl}, nil
}

// Encrypt posts req and returns the service EncryptionResponse.
//
// Transport failures & non 2xx status are flagged ErrEncryptionFailed,
// a body that is not an EncryptionResponse is flagged ErrMalformedResponse.
func (self *HttpEncryptionClient) Encrypt(ctx context.Context, req EncryptionRequest) (EncryptionResponse, error) {
	var encresp EncryptionResponse

	srzreq, err := jsonSrz.Marshal(req)
	if nil != err {
		return encresp, wrapError(err, ErrEncryptionFailed, "failed serializing EncryptionRequest")
	}
	httpreq, err := http.NewRequestWithContext(ctx, http.MethodPost, self.serverUrl, bytes.NewReader(srzreq))
	if nil != err {
		return encresp, wrapError(err, ErrEncryptionFailed, "failed instantiating http Request")
	}
	httpreq.Header.Add("Content-Type", "application/json")
	httpreq.Header.Add("Accept", "application/json")

	resp, err := self.client.Do(httpreq)
	if nil != err {
		return encresp, wrapError(err, ErrEncryptionFailed, "failed http POST request")
	}
	defer resp.Body.Close()

	srzresp, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if nil != err {
		return encresp, wrapError(err, ErrEncryptionFailed, "failed reading resp.Body")
	}

	if resp.StatusCode >= 300 || resp.StatusCode < 200 {
		// error responses may explain the failure
		_ = transport.JSONSerializer{}.Unmarshal(srzresp, &encresp)
		return EncryptionResponse{}, newError(
			ErrEncryptionFailed,
			"failed http POST request, got status %d %q",
			resp.StatusCode,
			encresp.Error,
		)
	}

	err = transport.JSONSerializer{}.Unmarshal(srzresp, &encresp)
	if nil != err {
		return EncryptionResponse{}, wrapError(err, ErrMalformedResponse, "failed deserializing resp.Body")
	}

	return encresp, nil
}

var _ Encryptor = &HttpEncryptionClient{}

// EncryptionHandler exposes an Encryptor over HTTP.
// It accepts EncryptionRequests posted by HttpEncryptionClient.
type EncryptionHandler struct {
	Encryptor Encryptor
}

func (self EncryptionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var errmsg string
	log := observability.GetObservability(r.Context()).Log().With("handler", "encryption")

	if http.MethodPost != r.Method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	srzreq, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if nil != err {
		errmsg = "failed reading request body"
		log.Error(errmsg, "error", err)
		writeError(w, http.StatusBadRequest, errmsg)
		return
	}
	var req EncryptionRequest
	err = jsonSrz.Unmarshal(srzreq, &req)
	if nil != err {
		errmsg = "invalid EncryptionRequest"
		log.Error(errmsg, "error", err)
		writeError(w, http.StatusBadRequest, errmsg)
		return
	}

	resp, err := self.Encryptor.Encrypt(r.Context(), req)
	if nil != err {
		errmsg = "encryption failed"
		log.Error(errmsg, "cardId", req.CardId, "error", err)
		writeError(w, http.StatusBadGateway, errmsg)
		return
	}

	srzresp, err := jsonSrz.Marshal(resp)
	if nil != err {
		errmsg = "failed JSON serialization"
		log.Error(errmsg, "error", err)
		writeError(w, http.StatusInternalServerError, errmsg)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(srzresp)
	if nil != err {
		log.Error("failed meanwhile delivering the HTTP response", "error", err)
	}
}

// writeError writes a json error response to w.
func writeError(w http.ResponseWriter, status int, msg string) {
	srzmsg, _ := transport.JSONSerializer{}.Marshal(EncryptionResponse{Error: msg})
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(srzmsg)
}
