//go:build !windows

package buffer

import (
	"os"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

func TestAppendRetrieveAllAsString(t *testing.T) {
	cases := map[string]string{
		"empty":     "",
		"oneline":   "hello\n",
		"oversized": strings.Repeat("x", 5000),
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			b := New()
			b.AppendString(s)
			if got := b.RetrieveAllAsString(); got != s {
				t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(s))
			}
			if b.ReadableBytes() != 0 {
				t.Fatalf("expected empty buffer after RetrieveAllAsString")
			}
		})
	}
}

func TestEnsureWritableCompactsBeforeGrowing(t *testing.T) {
	b := New()
	b.AppendString(strings.Repeat("a", 100))
	// Leave one byte unread: a full Retrieve resets both cursors and the
	// compaction branch would never run.
	b.Retrieve(99)
	capBefore := len(b.data)

	b.EnsureWritable(capBefore - DefaultPrependSize - 1)
	if len(b.data) != capBefore {
		t.Fatalf("expected compaction to avoid growth, cap changed from %d to %d", capBefore, len(b.data))
	}
	if b.reader != DefaultPrependSize {
		t.Fatalf("expected reader reset to prepend boundary, got %d", b.reader)
	}
}

func TestReadFdAbsorbsOverflowIntoSpill(t *testing.T) {
	r, w, err := pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	payload := strings.Repeat("z", spillSize+100)
	go func() {
		_, _ = w.Write([]byte(payload))
		w.Close()
	}()

	b := New()
	total := 0
	for total < len(payload) {
		n, err := b.ReadFd(int(r.Fd()))
		if err != nil {
			if err == unix.EAGAIN {
				continue
			}
			t.Fatal(err)
		}
		if n == 0 {
			break
		}
		total += n
	}
	if got := b.RetrieveAllAsString(); got != payload {
		t.Fatalf("absorbed %d bytes, want %d", len(got), len(payload))
	}
}

func pipe() (*os.File, *os.File, error) {
	return os.Pipe()
}
