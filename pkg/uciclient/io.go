package uciclient

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/seekerror/logw"
)

// readLines reads lines from r into a chan, closing it (and signaling done)
// when the stream ends, mirroring engine.ReadStdinLines but for a
// subprocess's stdout instead of the process's own stdin.
func readLines(ctx context.Context, tag string, r io.Reader) <-chan string {
	ret := make(chan string, 100)
	go func() {
		defer close(ret)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			logw.Debugf(ctx, "%v << %v", tag, scanner.Text())
			ret <- scanner.Text()
		}
	}()
	return ret
}

// writeLine writes a single line, followed by a newline, to w.
func writeLine(ctx context.Context, tag string, w io.Writer, line string) error {
	logw.Debugf(ctx, "%v >> %v", tag, line)
	_, err := fmt.Fprintf(w, "%v\n", line)
	return err
}
