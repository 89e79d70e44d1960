package server

import (
	"strings"
	"testing"
)

func FuzzBearerToken(f *testing.F) {
	f.Add("Bearer abc", "")
	f.Add("bearer", "key")
	f.Add("", "  ")
	f.Fuzz(func(t *testing.T, authz, key string) {
		got := bearerToken(authz, key)
		if got != strings.TrimSpace(got) {
			t.Fatalf("token %q not trimmed", got)
		}
	})
}
