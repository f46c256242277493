//go:build linux || darwin

package procmgr

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FuzzTailerLines checks that chunked appends come back as whole lines only
func FuzzTailerLines(f *testing.F) {
	f.Add("one\ntwo\n", uint8(3))
	f.Add("no newline", uint8(1))
	f.Add("\n\n\n", uint8(2))
	f.Add("[mdk4] stdout: beacon\npartial", uint8(7))

	f.Fuzz(func(t *testing.T, data string, chunk uint8) {
		size := int(chunk)%16 + 1
		path := filepath.Join(t.TempDir(), "out.log")

		file, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		defer file.Close()

		tl := &tailer{path: path}
		defer tl.close()

		var got []string
		send := func(ev FollowEvent) bool {
			if ev.Err != nil {
				t.Fatalf("unexpected error: %v", ev.Err)
			}
			got = append(got, ev.Line)
			return true
		}

		for i := 0; i < len(data); i += size {
			end := min(i+size, len(data))
			if _, err := file.WriteString(data[i:end]); err != nil {
				t.Fatal(err)
			}
			tl.drain(send)
		}

		want := strings.Split(data, "\n")
		want = want[:len(want)-1]
		if len(got) != len(want) {
			t.Fatalf("got %d lines, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("line %d = %q, want %q", i, got[i], want[i])
			}
		}
	})
}

// FuzzParseOutputMode checks that parsed modes survive a String round trip
func FuzzParseOutputMode(f *testing.F) {
	for _, s := range []string{"", "discard", "console", "file", "both", "Both ", "syslog"} {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, s string) {
		mode, err := ParseOutputMode(s)
		if err != nil {
			return
		}
		again, err := ParseOutputMode(mode.String())
		if err != nil {
			t.Fatalf("ParseOutputMode(%q) failed: %v", mode.String(), err)
		}
		if again != mode {
			t.Errorf("round trip %q: got %v, want %v", s, again, mode)
		}
	})
}
