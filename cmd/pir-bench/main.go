// Command pir-bench measures the cost of building and querying a keyword
// directory on a single machine: directory packing, client bootstrap, and the
// end-to-end latency of private lookups, reported as a profiling table.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/markkurossi/tabulate"
	"github.com/montanaflynn/stats"

	"github.com/mundrapranay/silhouette-crypto/keyword"
)

var configFile = flag.String("config", "", "YAML configuration file (defaults apply when empty)")

func benchKey(i int) string {
	return fmt.Sprintf("bench-key-%06d", i)
}

func main() {
	flag.Parse()

	cfg := DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = LoadConfig(*configFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	fmt.Printf("pir-bench: %d entries, %d queries, lwe_dimension=%d, plaintext_bits=%d, epsilon=%.2f\n\n",
		cfg.Entries, cfg.Queries, cfg.LWEDimension, cfg.PlaintextBits, cfg.Epsilon)

	entries := make(map[string]float64, cfg.Entries)
	for i := 0; i < cfg.Entries; i++ {
		entries[benchKey(i)] = float64(i) * 0.789
	}

	buildStart := time.Now()
	dir, err := keyword.BuildDirectory(entries, keyword.Options{
		LWEDimension:  cfg.LWEDimension,
		PlaintextBits: cfg.PlaintextBits,
		Epsilon:       cfg.Epsilon,
	})
	if err != nil {
		log.Fatalf("Failed to build directory: %v", err)
	}
	buildTime := time.Since(buildStart)

	manifest := dir.Manifest()

	bootStart := time.Now()
	client, err := keyword.NewClient(manifest)
	if err != nil {
		log.Fatalf("Failed to bootstrap client: %v", err)
	}
	bootTime := time.Since(bootStart)

	var (
		queryBytes    int
		responseBytes int
		mismatches    int
		latencies     = make([]float64, 0, cfg.Queries)
	)

	queriesStart := time.Now()
	for i := 0; i < cfg.Queries; i++ {
		key := benchKey(rand.Intn(cfg.Entries))

		start := time.Now()

		query, state, err := client.Request(key)
		if err != nil {
			log.Fatalf("Query %d: request failed: %v", i, err)
		}

		resp, err := dir.Respond(query)
		if err != nil {
			log.Fatalf("Query %d: respond failed: %v", i, err)
		}

		value, err := keyword.DecodeValue(state, resp)
		if err != nil {
			log.Fatalf("Query %d: decode failed: %v", i, err)
		}

		latencies = append(latencies, float64(time.Since(start).Microseconds())/1000.0)

		queryBytes = query.BinarySize()
		responseBytes = resp.BinarySize()

		if value != entries[key] {
			mismatches++
			log.Printf("Query %d: key %s decoded %v, want %v", i, key, value, entries[key])
		}
	}
	queriesTime := time.Since(queriesStart)

	mean, _ := stats.Mean(latencies)
	median, _ := stats.Median(latencies)
	stddev, _ := stats.StandardDeviation(latencies)

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Phase").SetAlign(tabulate.ML)
	tab.Header("Time").SetAlign(tabulate.MR)
	tab.Header("Detail").SetAlign(tabulate.MR)

	row := tab.Row()
	row.Column("build directory")
	row.Column(buildTime.String())
	row.Column(fmt.Sprintf("%d entries, %d-word row map", dir.Size(), manifest.RowMap.Columns()))

	row = tab.Row()
	row.Column("bootstrap client")
	row.Column(bootTime.String())
	row.Column(fmt.Sprintf("%d B manifest", manifest.BinarySize()))

	row = tab.Row()
	row.Column(fmt.Sprintf("queries (%d)", cfg.Queries))
	row.Column(queriesTime.String())
	row.Column(fmt.Sprintf("%d B up, %d B down each", queryBytes, responseBytes))

	row = tab.Row()
	row.Column("latency mean").SetFormat(tabulate.FmtItalic)
	row.Column(fmt.Sprintf("%.3fms", mean)).SetFormat(tabulate.FmtItalic)
	row.Column("")

	row = tab.Row()
	row.Column("latency median").SetFormat(tabulate.FmtItalic)
	row.Column(fmt.Sprintf("%.3fms", median)).SetFormat(tabulate.FmtItalic)
	row.Column("")

	row = tab.Row()
	row.Column("latency stddev").SetFormat(tabulate.FmtItalic)
	row.Column(fmt.Sprintf("%.3fms", stddev)).SetFormat(tabulate.FmtItalic)
	row.Column("")

	tab.Print(os.Stdout)

	if mismatches > 0 {
		log.Fatalf("%d of %d queries decoded the wrong value", mismatches, cfg.Queries)
	}
}
