package mymuduo

import (
	"bytes"
	"runtime"
	"strconv"
)

// currentGoroutineID recovers the running goroutine's numeric id by
// parsing the header line of a single-goroutine stack trace
// ("goroutine 37 [running]:"). Go deliberately exposes no public
// goroutine-identity API (there is no OS thread id to key a sentinel on,
// the way original_source/EventLoop.cc's __thread pointer does), so this
// is the standard, if unofficial, substitute used where a thread-local
// equivalent is unavoidable. See DESIGN.md OQ-2.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
