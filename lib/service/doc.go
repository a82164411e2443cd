// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service carries the daemon's management protocol: CBOR
// request/response over a Unix socket, one request per connection.
//
// A request is a CBOR map with an "action" key plus action-specific
// fields. The reply is a [Response] envelope, {ok, error, data}, where
// data is the CBOR encoding of whatever the handler returned. CBOR is
// self-delimiting, so there is no framing beyond the value itself.
//
// [SocketServer] dispatches by action name and recovers handler
// panics into error replies. [ServiceClient] is the matching client
// used by the partition CLI.
//
// There is no authentication layer. The socket is created mode 0600
// and filesystem permissions decide who may manage the daemon.
package service
