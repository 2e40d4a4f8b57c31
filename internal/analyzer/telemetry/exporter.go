package telemetry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// The exporter periodically logs a one-line analysis summary so long
// batch runs show progress without a Prometheus scraper attached.

var (
	lastAnalyses atomic.Int64

	exporterOnce sync.Once
	stopChan     chan struct{}
	wg           sync.WaitGroup
	stopped      uint32
)

func startExporter(interval time.Duration) {
	exporterOnce.Do(func() {
		stopChan = make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			exportLoop(interval)
		}()
	})
}

// StopExporter gracefully stops the summary loop. Safe to call
// multiple times, or without a running exporter.
func StopExporter() {
	if stopChan == nil {
		return
	}
	if !atomic.CompareAndSwapUint32(&stopped, 0, 1) {
		return
	}
	close(stopChan)
	wg.Wait()
}

func exportLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev int64
	for {
		select {
		case <-ticker.C:
			cur := lastAnalyses.Load()
			if cur != prev {
				fmt.Printf("[telemetry] %d analysis passes completed (+%d)\n", cur, cur-prev)
				prev = cur
			}
		case <-stopChan:
			return
		}
	}
}
