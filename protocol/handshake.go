// File: protocol/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The RFC 6455 upgrade handshake, accepting role: parse and validate the
// HTTP upgrade request, compute the Sec-WebSocket-Accept token, and emit
// the switching-protocols response or a rejection.

package protocol

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const (
	// WebSocketGUID is the fixed magic GUID appended to the client nonce
	// before hashing, per RFC 6455 Section 1.3.
	WebSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	// RequiredVersion is the only supported Sec-WebSocket-Version.
	RequiredVersion = "13"

	// MaxHandshakeHeadersSize defines the maximum combined length of
	// handshake headers.
	MaxHandshakeHeadersSize = 8192

	HeaderConnection       = "Connection"
	HeaderUpgrade          = "Upgrade"
	HeaderSecWebSocketKey  = "Sec-WebSocket-Key"
	HeaderSecWebSocketVer  = "Sec-WebSocket-Version"
	HeaderSecWebSocketProt = "Sec-WebSocket-Protocol"
	HeaderSecWebSocketExt  = "Sec-WebSocket-Extensions"
	HeaderSecWebSocketAcc  = "Sec-WebSocket-Accept"
)

// RejectionError describes a handshake failure together with the HTTP
// status the acceptor must answer with. No session is ever created for a
// rejected handshake.
type RejectionError struct {
	Status int
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("handshake rejected (%d): %s", e.Status, e.Reason)
}

// UpgradeRequest is the validated result of parsing an upgrade request.
type UpgradeRequest struct {
	// Target is the full original request target, path and query,
	// never truncated. Routing uses Path only; the session stores
	// Target verbatim.
	Target string
	// Path is the request target up to the first '?'.
	Path string
	// Query is everything after the first '?', preserved verbatim.
	Query string
	// Key is the client's base64 nonce.
	Key string
	// Subprotocols lists the client-offered subprotocols in offer order.
	Subprotocols []string
	// Extensions lists the client-offered extensions in offer order.
	Extensions []string
	// Host is the request Host header.
	Host string
	// Header exposes the remaining request headers.
	Header http.Header
}

// AcceptKey computes base64(SHA-1(key || magic GUID)).
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// SplitTarget splits a request target at the first '?'. Everything after
// it is the query string, preserved verbatim and never examined here.
func SplitTarget(target string) (path, query string) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:]
	}
	return target, ""
}

// ReadUpgrade reads one HTTP request from br and validates it as a
// WebSocket upgrade. Failures are *RejectionError values carrying the
// response status.
func ReadUpgrade(br *bufio.Reader) (*UpgradeRequest, error) {
	req, err := http.ReadRequest(br)
	if err != nil {
		return nil, &RejectionError{Status: http.StatusBadRequest, Reason: "malformed request"}
	}
	if req.Method != http.MethodGet {
		return nil, &RejectionError{Status: http.StatusMethodNotAllowed, Reason: "upgrade requires GET"}
	}

	total := 0
	for k, vs := range req.Header {
		total += len(k)
		for _, v := range vs {
			total += len(v)
		}
		if total > MaxHandshakeHeadersSize {
			return nil, &RejectionError{Status: http.StatusRequestHeaderFieldsTooLarge, Reason: "handshake headers too large"}
		}
	}

	if !headerContainsToken(req.Header, HeaderConnection, "Upgrade") ||
		!headerContainsToken(req.Header, HeaderUpgrade, "websocket") {
		return nil, &RejectionError{Status: http.StatusBadRequest, Reason: "invalid upgrade headers"}
	}
	if req.Header.Get(HeaderSecWebSocketVer) != RequiredVersion {
		return nil, &RejectionError{Status: http.StatusUpgradeRequired, Reason: "unsupported WebSocket version; only '13' is supported"}
	}
	key := req.Header.Get(HeaderSecWebSocketKey)
	if key == "" {
		return nil, &RejectionError{Status: http.StatusBadRequest, Reason: "missing Sec-WebSocket-Key header"}
	}
	if raw, err := base64.StdEncoding.DecodeString(key); err != nil || len(raw) != 16 {
		return nil, &RejectionError{Status: http.StatusBadRequest, Reason: "Sec-WebSocket-Key is not a base64 16-byte nonce"}
	}

	target := req.RequestURI
	path, query := SplitTarget(target)

	return &UpgradeRequest{
		Target:       target,
		Path:         path,
		Query:        query,
		Key:          key,
		Subprotocols: headerTokens(req.Header, HeaderSecWebSocketProt),
		Extensions:   headerTokens(req.Header, HeaderSecWebSocketExt),
		Host:         req.Host,
		Header:       req.Header,
	}, nil
}

// AcceptResponse builds the switching-protocols response bytes for the
// given client key and negotiated subprotocol (empty means none).
func AcceptResponse(key, subprotocol string) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString(HeaderSecWebSocketAcc + ": " + AcceptKey(key) + "\r\n")
	if subprotocol != "" {
		b.WriteString(HeaderSecWebSocketProt + ": " + subprotocol + "\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// RejectResponse builds an HTTP error response for a failed handshake.
func RejectResponse(status int, reason string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	if status == http.StatusUpgradeRequired {
		b.WriteString(HeaderSecWebSocketVer + ": " + RequiredVersion + "\r\n")
	}
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(reason))
	b.WriteString("Connection: close\r\n\r\n")
	b.WriteString(reason)
	return []byte(b.String())
}

// headerContainsToken checks if headerName contains the given token,
// case-insensitive.
func headerContainsToken(h http.Header, headerName, token string) bool {
	vals := h[http.CanonicalHeaderKey(headerName)]
	token = strings.ToLower(token)
	for _, v := range vals {
		for _, p := range strings.Split(v, ",") {
			if strings.ToLower(strings.TrimSpace(p)) == token {
				return true
			}
		}
	}
	return false
}

// headerTokens collects comma-separated tokens across all values of a
// header, preserving order.
func headerTokens(h http.Header, headerName string) []string {
	var out []string
	for _, v := range h[http.CanonicalHeaderKey(headerName)] {
		for _, p := range strings.Split(v, ",") {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}
