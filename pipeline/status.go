package pipeline

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/flowpipe/flowpipe/util/fileutil"
)

const statusInterval = 5 * time.Second

// FlowStatus renders a human-readable snapshot of every queue's
// saturation and every stage's alive/configured worker counts,
// interleaved in pipeline order: Q0, Stage0, Q1, Stage1, ..., Qn.
func (p *Pipeline) FlowStatus() string {
	t := table.NewWriter()
	t.SetTitle("Current Status of Stages and Queues")
	t.AppendHeader(table.Row{"Type", "Saturation", "Name", "Worker names"})

	for i, q := range p.queues {
		cap := "inf"
		if c := q.Capacity(); c > 0 {
			cap = strconv.Itoa(c)
		}
		t.AppendRow(table.Row{"Queue", fmt.Sprintf("%d/%s", q.QSize(), cap), "", ""})

		if i < len(p.stages) {
			st := p.stages[i]
			t.AppendRow(table.Row{
				"Stage",
				fmt.Sprintf("%d/%d", st.AliveWorkers(), st.WorkerCount()),
				st.Name(),
				joinNames(st.WorkerNames()),
			})
		}
	}

	return t.Render()
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}

// statusMonitor wakes every statusInterval and logs a rendered
// FlowStatus snapshot whenever it differs from the previous one. When
// snapshotPath is set, the snapshot is also atomically persisted to
// disk so an operator can inspect current state without scraping
// logs.
type statusMonitor struct {
	pipeline     *Pipeline
	snapshotPath string
}

func (m *statusMonitor) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := m.pipeline.FlowStatus()
			if snap == last {
				continue
			}
			last = snap
			log.Println("\n" + snap)
			if m.snapshotPath != "" {
				if err := fileutil.ReplaceFileContents(m.snapshotPath, []byte(snap)); err != nil {
					log.Printf("pipeline: failed to persist status snapshot: %v", err)
				}
			}
		}
	}
}
