// File: router/pattern_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package router

import "testing"

func TestCompileErrors(t *testing.T) {
	bad := []string{
		"",
		"echo",
		"relative/path",
		"/rooms/:",
		"/rooms/:id/users/:id",
		"/rooms/x:y",
	}
	for _, pattern := range bad {
		if _, err := Compile(pattern); err == nil {
			t.Errorf("Compile(%q) succeeded, want error", pattern)
		}
	}
}

func TestLiteralPattern(t *testing.T) {
	p, err := Compile("/echo")
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsLiteral() || p.LiteralSegments() != 1 {
		t.Fatalf("IsLiteral=%v LiteralSegments=%d", p.IsLiteral(), p.LiteralSegments())
	}
	params, ok := p.Match("/echo")
	if !ok || params != nil {
		t.Fatalf("Match(/echo) = %v, %v", params, ok)
	}
	for _, path := range []string{"/echo/extra", "/other", "/", "echo"} {
		if _, ok := p.Match(path); ok {
			t.Errorf("Match(%q) matched", path)
		}
	}
}

func TestTemplatedPattern(t *testing.T) {
	p, err := Compile("/rooms/:room/users/:user")
	if err != nil {
		t.Fatal(err)
	}
	if p.IsLiteral() {
		t.Fatal("templated pattern reported literal")
	}
	if p.LiteralSegments() != 2 {
		t.Fatalf("LiteralSegments = %d", p.LiteralSegments())
	}

	params, ok := p.Match("/rooms/lobby/users/alice")
	if !ok {
		t.Fatal("no match")
	}
	if params["room"] != "lobby" || params["user"] != "alice" {
		t.Fatalf("params = %v", params)
	}

	for _, path := range []string{
		"/rooms/lobby/users",            // too few segments
		"/rooms/lobby/members/alice",    // literal mismatch
		"/rooms/lobby/users/alice/more", // too many segments
		"/rooms//users/alice",           // empty variable segment
	} {
		if _, ok := p.Match(path); ok {
			t.Errorf("Match(%q) matched", path)
		}
	}
}

func TestRootPattern(t *testing.T) {
	p, err := Compile("/")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Match("/"); !ok {
		t.Error("root pattern did not match root path")
	}
	if _, ok := p.Match("/x"); ok {
		t.Error("root pattern matched non-root path")
	}
}
