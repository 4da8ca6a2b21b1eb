// Package api holds the contracts shared by every layer of endpoint-ws:
// the transport abstraction and the common error surface.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package api
