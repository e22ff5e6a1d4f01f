package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"
)

func TestInterestsIsOrderAndCaseInsensitive(t *testing.T) {
	a := Interests([]string{"Space", " rockets", "PHYSICS "})
	b := Interests([]string{"physics", "space", "Rockets"})
	if a != b {
		t.Fatalf("expected equal fingerprints, got %s and %s", a, b)
	}
	if len(a) != Length {
		t.Fatalf("expected %d chars, got %q", Length, a)
	}
	if strings.ToLower(a) != a {
		t.Fatalf("expected lowercase hex, got %q", a)
	}
}

func TestInterestsMatchesDigestOfSortedJoin(t *testing.T) {
	sum := md5.Sum([]byte("biology,cells"))
	want := hex.EncodeToString(sum[:])[:8]
	if got := Interests([]string{"Cells", "biology"}); got != want {
		t.Fatalf("Interests = %s, want %s", got, want)
	}
}

func TestInterestsEmptyTags(t *testing.T) {
	sum := md5.Sum(nil)
	want := hex.EncodeToString(sum[:])[:8]
	if got := Interests(nil); got != want {
		t.Fatalf("empty set: got %s want %s", got, want)
	}
	if Interests([]string{"a", ""}) == Interests([]string{"a"}) {
		t.Fatal("blank tags take part in the join and should change the fingerprint")
	}
}

func TestFolderName(t *testing.T) {
	got := FolderName("Solar System", []string{"planets"})
	if !strings.HasPrefix(got, "Solar_System__") {
		t.Fatalf("unexpected folder %q", got)
	}
	if got != FolderName("Solar System", []string{" PLANETS"}) {
		t.Fatal("expected identical folders for equivalent requests")
	}
}

func TestFolderNameStaysInsideRoot(t *testing.T) {
	root := "/srv/videos"
	for _, topic := range []string{"../../etc", "a/b", `c:\d`, "..", ""} {
		name := FolderName(topic, nil)
		if strings.ContainsAny(name, `/\`) {
			t.Fatalf("topic %q produced path separator in %q", topic, name)
		}
		joined := filepath.Join(root, name)
		if filepath.Dir(joined) != root {
			t.Fatalf("topic %q escaped root: %s", topic, joined)
		}
	}
}
