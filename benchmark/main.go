// Command benchmark loads the same row set into the paged B+ tree engine,
// Pebble, and the in-memory baseline, then measures mixed workloads over
// each. Results go to a CSV plus a latency chart.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/minidb-storage/minidb/dbms/index"
	"github.com/minidb-storage/minidb/dbms/index/lsm"
	"github.com/minidb-storage/minidb/dbms/index/memtree"
	"github.com/minidb-storage/minidb/dbms/index/paged"
)

func main() {
	scale := flag.Int("n", 20000, "rows to load per structure")
	outDir := flag.String("out", "results", "output directory")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatal(err)
	}

	f, err := os.Create(filepath.Join(*outDir, "benchmark_results.csv"))
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Write([]string{"Structure", "Config", "TestType", "LatencyNs", "MemMB", "HeapObjects"})

	work := func() string {
		dir, err := os.MkdirTemp("", "minidb-bench-*")
		if err != nil {
			log.Fatal(err)
		}
		return dir
	}

	var results []BenchResult

	// Paged B+ tree engine.
	dir := work()
	pg, err := paged.Open(filepath.Join(dir, "bench.db"))
	if err != nil {
		log.Fatal(err)
	}
	results = append(results, runSuite(w, "minidb", "paged", pg, *scale)...)
	pg.Close()
	os.RemoveAll(dir)

	// Pebble.
	dir = work()
	pebbleIdx, err := lsm.Open(filepath.Join(dir, "pebble"))
	if err != nil {
		log.Fatal(err)
	}
	results = append(results, runSuite(w, "pebble", "lsm", pebbleIdx, *scale)...)
	pebbleIdx.Close()
	os.RemoveAll(dir)

	// In-memory baseline.
	mem := memtree.New(32)
	results = append(results, runSuite(w, "memtree", "t=32", mem, *scale)...)
	mem.Close()

	w.Flush()

	plotPath := filepath.Join(*outDir, "latency.png")
	if err := WritePlot(results, plotPath); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Benchmark complete. CSV and %s ready for analysis.\n", plotPath)
}

func runSuite(w *csv.Writer, name, conf string, idx index.Index, n int) []BenchResult {
	fmt.Printf("Testing %s (%s)\n", name, conf)

	var results []BenchResult
	record := func(res BenchResult) {
		Record(w, res)
		results = append(results, res)
	}

	// 1. Pure insert (initial load), sequential keys.
	start := time.Now()
	for k := 0; k < n; k++ {
		if err := idx.Insert(makeRow(int32(k))); err != nil {
			log.Fatalf("%s: load insert %d: %v", name, k, err)
		}
	}
	insertLatency := time.Since(start).Nanoseconds() / int64(n)

	// Sample memory right after load, before the workloads run.
	stats := GetDetailedMem()
	record(BenchResult{
		Name:      name,
		Config:    conf,
		Operation: "Footprint_SteadyState",
		LatencyNs: insertLatency,
		MemMB:     stats.AllocMB,
		Objects:   stats.HeapObjects,
	})

	// 2. OLTP (read heavy).
	start = time.Now()
	ExecuteWorkload(idx, OLTP, n/2)
	record(BenchResult{name, conf, "Workload_OLTP", time.Since(start).Nanoseconds() / int64(n/2), GetDetailedMem().AllocMB, 0})

	// 3. OLAP (write heavy).
	start = time.Now()
	ExecuteWorkload(idx, OLAP, n/2)
	record(BenchResult{name, conf, "Workload_OLAP", time.Since(start).Nanoseconds() / int64(n/2), GetDetailedMem().AllocMB, 0})

	// 4. Range scans.
	start = time.Now()
	ExecuteWorkload(idx, Reporting, 100)
	record(BenchResult{name, conf, "Workload_Range", time.Since(start).Nanoseconds() / 100, GetDetailedMem().AllocMB, 0})

	return results
}
