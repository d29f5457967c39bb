package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
)

const (
	defaultReadSize      = 8192
	defaultBatchLimit    = 4096
	defaultFlushInterval = 16 * time.Millisecond
)

// exitMarker is what tmux prints into the client PTY when the attached
// session ends. Seeing it in the output means the bridge should come down.
const exitMarker = "[exited]"

// outputPump moves PTY output to the client. A read goroutine blocks on the
// master fd (the runtime parks it on the poller, so reads are readiness
// driven rather than a select loop) and hands chunks to Run, which batches
// and flushes either every flushInterval or as soon as batchLimit bytes are
// pending. Unthrottled per-read frames freeze browsers under heavy output.
type outputPump struct {
	src           io.Reader
	send          func(text string) error
	readSize      int
	batchLimit    int
	flushInterval time.Duration
	log           *slog.Logger

	sawExit bool
}

func newOutputPump(src io.Reader, send func(string) error, opts Options, log *slog.Logger) *outputPump {
	if log == nil {
		log = slog.Default()
	}
	p := &outputPump{
		src:           src,
		send:          send,
		readSize:      opts.ReadSize,
		batchLimit:    opts.BatchLimit,
		flushInterval: opts.FlushInterval,
		log:           log,
	}
	if p.readSize <= 0 {
		p.readSize = defaultReadSize
	}
	if p.batchLimit <= 0 {
		p.batchLimit = defaultBatchLimit
	}
	if p.flushInterval <= 0 {
		p.flushInterval = defaultFlushInterval
	}
	return p
}

// Run pumps until EOF, a read error, the exit marker, or ctx cancellation.
// The pending batch is flushed on every exit path. A nil return means the
// source ended cleanly; sawExit records whether the exit marker was seen.
func (p *outputPump) Run(ctx context.Context) error {
	chunks := make(chan []byte, 8)
	readErr := make(chan error, 1)
	go func() {
		defer close(chunks)
		buf := make([]byte, p.readSize)
		for {
			n, err := p.src.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	var carry []byte
	var batch bytes.Buffer
	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		text := batch.String()
		batch.Reset()
		if err := p.send(text); err != nil {
			return err
		}
		if strings.Contains(text, exitMarker) {
			p.sawExit = true
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			_ = flush()
			return ctx.Err()
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
			if p.sawExit {
				return nil
			}
		case chunk, ok := <-chunks:
			if !ok {
				if err := flush(); err != nil {
					return err
				}
				select {
				case err := <-readErr:
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				default:
					return nil
				}
			}
			data := chunk
			if len(carry) > 0 {
				data = append(carry, chunk...)
			}
			complete, partial := splitTrailingPartial(data)
			if len(partial) > maxCarry {
				p.log.Warn("dropping undecodable pty bytes", "len", len(partial))
				partial = nil
			}
			carry = append([]byte(nil), partial...)
			batch.WriteString(sanitizeText(complete))
			if batch.Len() >= p.batchLimit {
				if err := flush(); err != nil {
					return err
				}
				if p.sawExit {
					return nil
				}
			}
		}
	}
}
