/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package telemetry is the append-only scheduling decision log: every
// placement decision is recorded with its reward and timestamp, and can
// be rendered to a PNG chart on demand. Chosen over go-echarts because
// gonum.org/v1/plot renders straight to PNG without a browser/JS
// snapshot step.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	apiv1 "github.com/gmnkube/control-plane/pkg/apis/v1"
)

// Log is a mutex-guarded append-only []ScheduleRecord.
type Log struct {
	mu      sync.RWMutex
	records []apiv1.ScheduleRecord
}

// NewLog constructs an empty telemetry log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a new record. Scheduling records persist for the process
// lifetime.
func (l *Log) Append(podKey apiv1.PodKey, nodeName string, rewardValue float64, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, apiv1.ScheduleRecord{
		Timestamp: at,
		PodKey:    podKey,
		NodeName:  nodeName,
		Reward:    rewardValue,
	})
}

// Len returns the number of recorded decisions.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of every record recorded so far.
func (l *Log) Records() []apiv1.ScheduleRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]apiv1.ScheduleRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Render draws two stacked series over the decision sequence — on top a
// scatter of the chosen node (each node name mapped to an index in order
// of first appearance), below a reward line — to a single PNG at path,
// creating parent directories on demand.
func (l *Log) Render(path string) error {
	records := l.Records()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("telemetry: creating parent directories for %s: %w", path, err)
	}

	nodeIndex := map[string]float64{}
	rewardPts := make(plotter.XYs, len(records))
	nodePts := make(plotter.XYs, len(records))
	for i, r := range records {
		idx, ok := nodeIndex[r.NodeName]
		if !ok {
			idx = float64(len(nodeIndex))
			nodeIndex[r.NodeName] = idx
		}
		x := float64(i)
		rewardPts[i] = plotter.XY{X: x, Y: r.Reward}
		nodePts[i] = plotter.XY{X: x, Y: idx}
	}

	nodePlot := plot.New()
	nodePlot.Title.Text = "node chosen per schedule decision"
	nodePlot.X.Label.Text = "decision #"
	nodePlot.Y.Label.Text = "node index"
	if err := plotutil.AddScatters(nodePlot, "node", nodePts); err != nil {
		return fmt.Errorf("telemetry: rendering node series: %w", err)
	}

	rewardPlot := plot.New()
	rewardPlot.Title.Text = "reward per schedule decision"
	rewardPlot.X.Label.Text = "decision #"
	rewardPlot.Y.Label.Text = "reward"
	if err := plotutil.AddLinePoints(rewardPlot, "reward", rewardPts); err != nil {
		return fmt.Errorf("telemetry: rendering reward series: %w", err)
	}

	img := vgimg.New(8*vg.Inch, 8*vg.Inch)
	dc := draw.New(img)
	top, bottom := splitHorizontal(dc)
	nodePlot.Draw(top)
	rewardPlot.Draw(bottom)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("telemetry: creating %s: %w", path, err)
	}
	defer f.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("telemetry: writing %s: %w", path, err)
	}
	return nil
}

// splitHorizontal divides a canvas into an upper and lower half.
func splitHorizontal(c draw.Canvas) (top, bottom draw.Canvas) {
	mid := c.Min.Y + (c.Max.Y-c.Min.Y)/2
	top = draw.Canvas{Canvas: c.Canvas, Rectangle: vg.Rectangle{
		Min: vg.Point{X: c.Min.X, Y: mid},
		Max: c.Max,
	}}
	bottom = draw.Canvas{Canvas: c.Canvas, Rectangle: vg.Rectangle{
		Min: c.Min,
		Max: vg.Point{X: c.Max.X, Y: mid},
	}}
	return top, bottom
}
