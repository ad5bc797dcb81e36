package avatar

import (
	"strings"
	"testing"
)

func TestMD5Digest(t *testing.T) {
	// Known MD5 of "john@example.com"
	const want = "d4c74594d841139328695756648b6bd6"

	if got := MD5Digest("john@example.com"); got != want {
		t.Errorf("digest = %q, want %q", got, want)
	}

	// Case and surrounding whitespace never change the digest
	if got := MD5Digest("  John@Example.COM "); got != want {
		t.Errorf("normalized digest = %q, want %q", got, want)
	}
}

func TestService_URL(t *testing.T) {
	svc := New("", nil)

	url := svc.URL("john@example.com", 128)

	if !strings.HasPrefix(url, "https://www.gravatar.com/avatar/") {
		t.Errorf("url = %q, want gravatar prefix", url)
	}
	if !strings.Contains(url, "d4c74594d841139328695756648b6bd6") {
		t.Errorf("url = %q, want email digest in path", url)
	}
	if !strings.Contains(url, "d=identicon") {
		t.Errorf("url = %q, want identicon default", url)
	}
	if !strings.HasSuffix(url, "s=128") {
		t.Errorf("url = %q, want size 128", url)
	}
}

func TestService_URL_Deterministic(t *testing.T) {
	svc := New("", nil)

	a := svc.URL("susan@example.com", 36)
	b := svc.URL("SUSAN@example.com", 36)
	if a != b {
		t.Errorf("same email in different case produced different URLs:\n%s\n%s", a, b)
	}

	c := svc.URL("other@example.com", 36)
	if a == c {
		t.Error("different emails produced the same URL")
	}
}

func TestService_URL_CustomBase(t *testing.T) {
	svc := New("https://avatars.internal/", nil)

	url := svc.URL("john@example.com", 64)
	if !strings.HasPrefix(url, "https://avatars.internal/") {
		t.Errorf("url = %q, want custom base", url)
	}
	if strings.Contains(url, "avatars.internal//") {
		t.Errorf("url = %q, trailing slash not trimmed", url)
	}
}

func TestService_CustomDigest(t *testing.T) {
	svc := New("", func(email string) string { return "fixed" })

	url := svc.URL("anything@example.com", 36)
	if !strings.Contains(url, "/fixed?") {
		t.Errorf("url = %q, want custom digest in path", url)
	}
}
