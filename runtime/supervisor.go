// Package runtime wires a pipeline, its status HTTP server, and an
// operator CLI into one supervised actor group, adapted from the
// teacher's oklog/run server wiring.
package runtime

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/oklog/run"

	"github.com/flowpipe/flowpipe/pipeline"
	"github.com/flowpipe/flowpipe/replcli"
	"github.com/flowpipe/flowpipe/statusapi"
)

// Run starts pl, serves its status over HTTP on statusAddr, and drives
// the operator CLI, all under one run.Group: the first actor to return
// (a signal, a fatal pipeline error, a server error, or CLI exit)
// triggers an ordered interrupt of the rest.
func Run(pl *pipeline.Pipeline, status *statusapi.Server, cli *replcli.CLI, statusAddr string) error {
	var rg run.Group

	signalTrap := make(chan os.Signal, 1)
	signal.Notify(signalTrap, syscall.SIGINT, syscall.SIGTERM)
	rg.Add(
		func() error {
			if sig, ok := <-signalTrap; ok {
				log.Printf("flowpipe rungroup interrupt due to: %v", sig)
				return errors.New(sig.String() + " signal")
			}
			return nil
		},
		func(error) {
			signal.Stop(signalTrap)
			close(signalTrap)
		},
	)

	// pipeline fatal-error watcher: any worker error surfaces here and
	// brings the whole actor group down.
	stopWatch := make(chan struct{})
	rg.Add(
		func() error {
			select {
			case err := <-pl.Err():
				return err
			case <-stopWatch:
				return nil
			}
		},
		func(error) {
			close(stopWatch)
			pl.Stop()
		},
	)

	// status HTTP server
	rg.Add(
		func() error {
			return status.ListenAndServe(statusAddr)
		},
		status.Interrupt,
	)

	// operator CLI
	rg.Add(cli.Run, cli.Interrupt)

	log.Println("Starting flowpipe actor group")
	err := rg.Run()
	log.Printf("flowpipe actor group exited: %v\n", err)
	return err
}
