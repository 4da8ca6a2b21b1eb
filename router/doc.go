// Package router provides path-pattern compilation and matching for
// endpoint registrations. Matching works on the path component only;
// query strings are split off before matching and preserved verbatim by
// the caller.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package router
