// Package replcli provides an interactive line-oriented REPL for
// operating a running pipeline, adapted from the teacher's media CLI:
// same cancelable-stdin-reader shape, commands for this domain instead
// of media management.
package replcli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/flowpipe/flowpipe/pipeline"
	"github.com/flowpipe/flowpipe/util/ratectl"
)

// ErrReadCancelled wraps the cause of an Interrupt call that aborted
// an in-flight Read.
type ErrReadCancelled struct {
	cause error
}

func (e ErrReadCancelled) Error() string { return "read cancelled" }
func (e ErrReadCancelled) Unwrap() error { return e.cause }

var errReadCancelled ErrReadCancelled

var errExitFromCLI = errors.New("CLI exit")

// CancelableReader wraps an io.Reader so a blocked Read can be
// interrupted on demand, via a background goroutine pumping reads
// into a channel that Read selects on alongside a cancel channel.
type CancelableReader struct {
	cancel <-chan error
	data   chan []byte
	err    error
	r      io.Reader
}

func (c *CancelableReader) begin() {
	buf := make([]byte, 1024)
	for {
		n, err := c.r.Read(buf)
		if n > 0 {
			tmp := make([]byte, n)
			copy(tmp, buf[:n])
			c.data <- tmp
		}
		if err != nil {
			c.err = err
			close(c.data)
			return
		}
	}
}

func (c *CancelableReader) Read(p []byte) (int, error) {
	select {
	case err := <-c.cancel:
		return 0, ErrReadCancelled{cause: err}
	case d, ok := <-c.data:
		if !ok {
			return 0, c.err
		}
		copy(p, d)
		return len(d), nil
	}
}

func NewCancelableReader(cancel <-chan error, r io.Reader) *CancelableReader {
	c := &CancelableReader{
		cancel: cancel,
		r:      r,
		data:   make(chan []byte),
	}
	go c.begin()
	return c
}

// CLI is an interactive operator console over a running pipeline: it
// prints FlowStatus on demand, triggers Stop, and toggles the optional
// input pauser.
type CLI struct {
	pl     *pipeline.Pipeline
	pauser *ratectl.Pauser

	reader        *CancelableReader
	cancelReader  chan<- error
	interruptOnce sync.Once
}

// NewCLI builds a CLI over pl. pauser may be nil if the pipeline
// wasn't constructed with pipeline.WithInputPauser.
func NewCLI(pl *pipeline.Pipeline, pauser *ratectl.Pauser) *CLI {
	c := make(chan error, 1)

	return &CLI{
		pl:           pl,
		pauser:       pauser,
		reader:       NewCancelableReader(c, os.Stdin),
		cancelReader: c,
	}
}

func (c *CLI) commandStatus(ctx context.Context, cmd *cli.Command) error {
	fmt.Println(c.pl.FlowStatus())
	return nil
}

func (c *CLI) commandStop(ctx context.Context, cmd *cli.Command) error {
	log.Println("stopping pipeline from CLI command")
	c.pl.Stop()
	return nil
}

func (c *CLI) commandPause(ctx context.Context, cmd *cli.Command) error {
	if c.pauser == nil {
		return errors.New("pipeline was not started with an input pauser")
	}
	c.pauser.SetPaused(true)
	fmt.Println("input feed paused")
	return nil
}

func (c *CLI) commandResume(ctx context.Context, cmd *cli.Command) error {
	if c.pauser == nil {
		return errors.New("pipeline was not started with an input pauser")
	}
	c.pauser.SetPaused(false)
	fmt.Println("input feed resumed")
	return nil
}

// Run drives the REPL loop until the reader is cancelled via
// Interrupt or a read error occurs. It satisfies the oklog/run actor
// execute signature.
func (c *CLI) Run() error {
	log.Println("running flowpipe CLI")
	defer log.Println("flowpipe CLI stopped")

	// override default error handler (we don't want to exit on error)
	cli.OsExiter = func(int) {}

	cmd := &cli.Command{
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "print the current queue/stage saturation snapshot",
				Action: c.commandStatus,
			},
			{
				Name:   "pause",
				Usage:  "pause feeding new items into the pipeline",
				Action: c.commandPause,
			},
			{
				Name:   "resume",
				Usage:  "resume feeding new items into the pipeline",
				Action: c.commandResume,
			},
			{
				Name:   "stop",
				Usage:  "shut the pipeline down",
				Action: c.commandStop,
			},
			{
				Name: "exit",
				Action: func(context.Context, *cli.Command) error {
					c.Interrupt(errExitFromCLI)
					return nil
				},
			},
		},
	}

	reader := bufio.NewReader(c.reader)
	for {
		fmt.Print("flowpipe> ")

		input, err := reader.ReadString('\n')
		if err != nil {
			// If the input read was cancelled on purpose, we are more
			// interested in the root cause (usually CLI exit or
			// supervisor-wide shutdown).
			if errors.As(err, &errReadCancelled) {
				return errors.Unwrap(err)
			}
			return err
		}

		input = strings.TrimSpace(input)

		args := append([]string{"flowpipe"}, strings.Fields(input)...)
		if err := cmd.Run(context.Background(), args); err != nil {
			log.Println(err)
		}
	}
}

// Interrupt aborts any in-flight Read and stops the REPL loop.
func (c *CLI) Interrupt(cause error) {
	c.interruptOnce.Do(func() {
		log.Printf("stopping flowpipe CLI: %v\n", cause)
		c.cancelReader <- cause
	})
}
