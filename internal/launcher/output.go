package launcher

import (
	"strings"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// outputTail keeps the last bytes a browser process wrote to stdout and
// stderr, for LaunchFailed messages.
type outputTail struct {
	mu   sync.Mutex
	size int
	buf  *ringbuffer.RingBuffer
}

func newOutputTail(size int) *outputTail {
	if size <= 0 {
		size = 8192
	}
	return &outputTail{size: size, buf: ringbuffer.New(size)}
}

func (o *outputTail) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(p)
	if len(p) > o.size {
		p = p[len(p)-o.size:]
	}
	if over := len(p) - o.buf.Free(); over > 0 {
		discard := make([]byte, over)
		_, _ = o.buf.Read(discard)
	}
	if _, err := o.buf.Write(p); err != nil {
		return 0, err
	}
	return n, nil
}

// String drains the buffer.
func (o *outputTail) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.buf.Length() == 0 {
		return ""
	}
	out := make([]byte, o.buf.Length())
	n, _ := o.buf.Read(out)
	return strings.TrimSpace(string(out[:n]))
}
