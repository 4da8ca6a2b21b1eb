// File: protocol/handshake_client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The upgrade handshake, initiating role: build the request, then
// validate the acceptor's response against the nonce that was sent and
// the subprotocols that were offered.

package protocol

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// HandshakeError reports an initiating-role handshake failure. The
// connect must abort and release the transport; no session is created.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string {
	return "handshake failed: " + e.Reason
}

// NewChallengeKey returns a base64-encoded random 16-byte nonce.
func NewChallengeKey() (string, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("challenge key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce[:]), nil
}

// BuildUpgradeRequest serializes the client upgrade request for the given
// host, request target (path plus optional query) and challenge key.
func BuildUpgradeRequest(host, target, key string, subprotocols []string) []byte {
	var b strings.Builder
	b.WriteString("GET " + target + " HTTP/1.1\r\n")
	b.WriteString("Host: " + host + "\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString(HeaderSecWebSocketKey + ": " + key + "\r\n")
	b.WriteString(HeaderSecWebSocketVer + ": " + RequiredVersion + "\r\n")
	if len(subprotocols) > 0 {
		b.WriteString(HeaderSecWebSocketProt + ": " + strings.Join(subprotocols, ", ") + "\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ReadUpgradeResponse reads the acceptor's handshake response and
// validates it: the status must be 101, the accept token must match the
// expected computation for sentKey, and any selected subprotocol must
// have been offered. It returns the negotiated subprotocol, empty when
// none was selected.
func ReadUpgradeResponse(br *bufio.Reader, sentKey string, offered []string) (string, error) {
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		return "", &HandshakeError{Reason: "malformed response: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		return "", &HandshakeError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
	if !headerContainsToken(resp.Header, HeaderUpgrade, "websocket") ||
		!headerContainsToken(resp.Header, HeaderConnection, "Upgrade") {
		return "", &HandshakeError{Reason: "missing upgrade headers"}
	}
	if got := resp.Header.Get(HeaderSecWebSocketAcc); got != AcceptKey(sentKey) {
		return "", &HandshakeError{Reason: "accept token mismatch"}
	}

	selected := resp.Header.Get(HeaderSecWebSocketProt)
	if selected != "" {
		found := false
		for _, o := range offered {
			if o == selected {
				found = true
				break
			}
		}
		if !found {
			return "", &HandshakeError{Reason: "server selected unoffered subprotocol " + selected}
		}
	}
	return selected, nil
}
