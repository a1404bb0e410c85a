package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/flowpipe/flowpipe/pipeline"
	"github.com/flowpipe/flowpipe/replcli"
	"github.com/flowpipe/flowpipe/runtime"
	"github.com/flowpipe/flowpipe/statusapi"
)

func setupLogging() (*os.File, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(filepath.Dir(exePath), "flowpipe.log")
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	log.SetOutput(logFile)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	return logFile, nil
}

// buildDemoPipeline assembles a small batching/mapping topology:
// collect ints 8 at a time, double each one, explode the batches back
// into singles, then subtract one from each. It exists to give
// operators something to point the CLI/status server at; real
// deployments construct their own stage list.
func buildDemoPipeline() []pipeline.Stage {
	double := pipeline.Map("double", 5, func(v any) (any, error) {
		batch := v.([]any)
		out := make([]any, len(batch))
		for i, x := range batch {
			out[i] = x.(int) * 2
		}
		return out, nil
	})
	minusOne := pipeline.Map("minus-one", 5, func(v any) (any, error) {
		n := v.(int)
		return n - 1, nil
	})

	return []pipeline.Stage{
		pipeline.Pack(8),
		double,
		pipeline.Unpack(),
		minusOne,
	}
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		panic(err)
	}
	defer logFile.Close()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, continuing with process environment")
	}

	log.Println("Starting flowpipe application")

	statusAddr := os.Getenv("FLOWPIPE_STATUS_ADDR")
	if statusAddr == "" {
		statusAddr = "localhost:8080"
	}

	pauseOpt, pauser := pipeline.WithInputPauser()
	pl := pipeline.New(buildDemoPipeline(), pauseOpt)

	if err := pl.Start(); err != nil {
		log.Fatalf("failed to start pipeline: %v", err)
	}

	go func() {
		err := pl.QueueIterable(func(yield func(any) bool) {
			for i := 1; i <= 19; i++ {
				if !yield(i) {
					return
				}
			}
		})
		if err != nil {
			log.Printf("failed to queue input: %v", err)
			return
		}

		for v := range pl.All() {
			fmt.Println(v)
		}
	}()

	status := statusapi.NewServer(pl)
	cli := replcli.NewCLI(pl, pauser)

	if err := runtime.Run(pl, status, cli, statusAddr); err != nil {
		log.Printf("flowpipe exited: %v\n", err)
	}
}
