package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	proto "github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
)

const contentTypeProtobuf = "application/x-protobuf"

// userAgent identifies this runtime to the metastore/pagestore.
const userAgent = "graft-client/0.1"

// wireMessage is satisfied by every request/response type in the protocol
// package. Encoding goes through gogo's proto.Marshal/proto.Unmarshal, which
// dispatch to each type's hand-written Marshaler/Unmarshaler fast path
// rather than reflection-based struct-tag encoding.
type wireMessage interface {
	proto.Message
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// Config configures a metastore or pagestore HTTP client.
type Config struct {
	// BaseURL is the server's base address, e.g. "http://localhost:3000".
	BaseURL string
	// HTTPClient is used for all requests; a zero value gets a default
	// client with a 30s timeout.
	HTTPClient *http.Client
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// postMessage sends req's wire encoding as the POST body to path and
// decodes the response into resp. Any status other than 200 yields
// ErrUnexpectedStatus without decoding the body; GraftErr envelopes travel
// inside 200 responses in the message types' own Err field.
func postMessage(ctx context.Context, cfg Config, path string, req, resp wireMessage) error {
	body, err := proto.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "client: failed to encode request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "client: failed to build request")
	}
	httpReq.Header.Set("Content-Type", contentTypeProtobuf)
	httpReq.Header.Set("User-Agent", userAgent)

	httpResp, err := cfg.httpClient().Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "client: http request failed")
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return errors.Wrap(err, "client: failed to read response body")
	}

	if httpResp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrUnexpectedStatus, "status %d", httpResp.StatusCode)
	}

	if err := proto.Unmarshal(respBody, resp); err != nil {
		return errors.Wrap(ErrProtobufDecode, err.Error())
	}
	return nil
}

func healthCheck(ctx context.Context, cfg Config, path string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "client: failed to build health request")
	}
	httpReq.Header.Set("User-Agent", userAgent)

	httpResp, err := cfg.httpClient().Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "client: health check failed")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: health check returned status %d", httpResp.StatusCode)
	}
	return nil
}
