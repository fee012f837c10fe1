package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"

	"golang.org/x/exp/jsonrpc2"

	"github.com/zohobridge/mcp-gateway/pkg/logger"
	"github.com/zohobridge/mcp-gateway/pkg/rpc"
)

// maxUploadBodyBytes bounds a single envelope/line on both transports. It
// must clear uploadReviewSheet's 1 GiB decoded ceiling (spec §4.6) once
// base64-inflated (~1.37 GiB) plus envelope overhead, with margin to
// spare; (2<<30)-1 keeps it representable as a plain int on a 32-bit
// build, which bufio.Scanner.Buffer's max parameter requires.
const maxUploadBodyBytes = (2 << 30) - 1

const maxLineBytes = maxUploadBodyBytes

// StreamTransport implements spec §4.10's stream shape: newline-delimited
// JSON-RPC over standard input/output, no admission gate (it is "intended
// for co-located supervised execution"). Concurrent in-flight requests on
// the same stream are permitted and correlated by id, since each line is
// dispatched on its own goroutine.
type StreamTransport struct {
	in         io.Reader
	out        io.Writer
	dispatcher *rpc.Dispatcher
	writeMu    sync.Mutex
}

// NewStreamTransport builds a StreamTransport reading requests from in
// and writing responses to out.
func NewStreamTransport(in io.Reader, out io.Writer, dispatcher *rpc.Dispatcher) *StreamTransport {
	return &StreamTransport{in: in, out: out, dispatcher: dispatcher}
}

// Run reads newline-delimited requests until in is exhausted or ctx is
// cancelled, dispatching each on its own goroutine so a slow call never
// blocks others sharing the stream.
func (t *StreamTransport) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		// Copy: scanner reuses its internal buffer across Scan calls, and
		// the dispatch below runs concurrently with the next read.
		req := append([]byte(nil), line...)

		if _, err := jsonrpc2.DecodeMessage(req); err != nil {
			t.writeLine(malformedRequestResponse())
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if resp := t.dispatcher.Handle(ctx, req); resp != nil {
				t.writeLine(resp)
			}
		}()
	}
	return scanner.Err()
}

func (t *StreamTransport) writeLine(resp []byte) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.out.Write(resp); err != nil {
		logger.Warnw("failed writing stream response", "error", err)
		return
	}
	if _, err := t.out.Write([]byte("\n")); err != nil {
		logger.Warnw("failed writing stream response terminator", "error", err)
	}
}

func malformedRequestResponse() []byte {
	return []byte(`{"jsonrpc":"2.0","error":{"code":-32700,"message":"could not parse request envelope"},"id":null}`)
}
