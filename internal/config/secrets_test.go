package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveSecret(t *testing.T) {
	t.Setenv("BAGUA_NET_TEST_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("from-file\n"), 0600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{" plain ", "plain"},
		{"env:BAGUA_NET_TEST_TOKEN", "from-env"},
		{"file:" + path, "from-file"},
		{"file:" + path + ".missing", ""},
	}
	for _, tc := range tests {
		if got := ResolveSecret(tc.in); got != tc.want {
			t.Fatalf("ResolveSecret(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}
