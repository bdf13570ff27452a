package timecache

import (
	"regexp"
	"sort"
	"testing"
	"time"
)

func TestUnixTracksWallClock(t *testing.T) {
	got := Unix()
	now := time.Now().Unix()
	// The cached clock ticks once a second; allow that much skew.
	if got < now-2 || got > now+2 {
		t.Fatalf("Unix() = %d, wall clock = %d", got, now)
	}
}

func TestNewFilenameShape(t *testing.T) {
	name := NewFilename("agent-1")

	re := regexp.MustCompile(`^\d+_agent-1_\d{6}\.jsonl\.gz$`)
	if !re.MatchString(name) {
		t.Fatalf("filename %q does not match <unix>_<instance>_<counter>.jsonl.gz", name)
	}

	sec, ok := UnixFromFilename(name)
	if !ok {
		t.Fatalf("UnixFromFilename rejected %q", name)
	}
	now := time.Now().Unix()
	if sec < now-2 || sec > now+2 {
		t.Fatalf("filename timestamp %d far from now %d", sec, now)
	}
}

func TestFilenamesSortInCreationOrder(t *testing.T) {
	names := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		names = append(names, NewFilename("agent-1"))
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for i := range names {
		if names[i] != sorted[i] {
			t.Fatalf("creation order %v != lexicographic order %v", names, sorted)
		}
	}
}

func TestUnixFromFilenameRejectsGarbage(t *testing.T) {
	for _, name := range []string{
		"",
		"_agent_000001.jsonl.gz",
		"notanumber_agent_000001.jsonl.gz",
		"-5_agent_000001.jsonl.gz",
		"plainfile.txt",
	} {
		if _, ok := UnixFromFilename(name); ok {
			t.Fatalf("UnixFromFilename accepted %q", name)
		}
	}
}
