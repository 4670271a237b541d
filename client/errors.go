// Package client implements the HTTP metastore and pagestore transports:
// request/response marshaling onto the wire types in protocol, over
// length-prefixed protobuf-over-HTTP.
package client

import (
	"github.com/pkg/errors"
)

// Sentinel transport-layer errors. Call sites wrap them with
// github.com/pkg/errors, so errors.Is and errors.Cause reach the sentinel;
// the text of an underlying decode failure is kept in the wrapping message.
var (
	// ErrProtobufDecode marks a response body that failed to unmarshal into
	// its expected wire message.
	ErrProtobufDecode = errors.New("client: failed to decode response body")
	// ErrUnexpectedStatus marks any non-200 HTTP response; its body is not
	// decoded.
	ErrUnexpectedStatus = errors.New("client: unexpected http status")
)
