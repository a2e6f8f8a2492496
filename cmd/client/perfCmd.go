package client

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/dEcho/cmd/util"
	"github.com/ValentinKolb/dEcho/lib/stats"
	echoclient "github.com/ValentinKolb/dEcho/service/client"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"log"
	"math/rand"
	"sync"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for echo servers",
		Long:    "Opens several concurrent connections, echoes random payloads over each of them and reports latency percentiles and how evenly the server served the connections.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfConnections = 10
	perfDuration    = 5 * time.Second
	perfPayloadSize = 64
)

func init() {
	// add flags
	key := "connections"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent connections"))
	key = "duration"
	perfTestCmd.Flags().Int(key, 5, util.WrapString("Duration of the test in seconds"))
	key = "payload-size"
	perfTestCmd.Flags().Int(key, 64, util.WrapString("Size of every echoed payload in bytes"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfConnections = viper.GetInt("connections")
	perfDuration = time.Duration(viper.GetInt("duration")) * time.Second
	perfPayloadSize = viper.GetInt("payload-size")

	if perfConnections < 1 || perfPayloadSize < 1 || perfDuration <= 0 {
		return fmt.Errorf("connections, duration and payload-size must be positive")
	}
	return nil
}

// perfResult is the outcome of one connection
type perfResult struct {
	echoes int64
	bytes  int64
}

func runPerf(cmd *cobra.Command, _ []string) error {
	config := util.GetClientConfig()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Performance testing tool for echo servers")

	// Print configuration
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintln(out, config.String())
	fmt.Fprintf(out, "Connections: %d\n", perfConnections)
	fmt.Fprintf(out, "Duration: %s\n", perfDuration)
	fmt.Fprintf(out, "Payload: %d bytes\n", perfPayloadSize)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "starting test...")

	latency := gometrics.NewTimer()
	defer latency.Stop()
	failures := gometrics.NewCounter()

	results := make([]perfResult, perfConnections)
	deadline := time.Now().Add(perfDuration)

	var wg sync.WaitGroup
	for i := 0; i < perfConnections; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			c, err := echoclient.NewEchoClient(*config)
			if err != nil {
				log.Printf("(conn %d) - %v\n", i, err)
				failures.Inc(1)
				return
			}
			defer c.Close()

			rng := rand.New(rand.NewSource(int64(i)))
			payload := make([]byte, perfPayloadSize)

			for time.Now().Before(deadline) {
				rng.Read(payload)

				start := time.Now()
				got, err := c.Echo(payload)
				if err != nil {
					log.Printf("(conn %d %s) - %v\n", i, c.LocalAddr(), err)
					failures.Inc(1)
					return
				}
				if !bytes.Equal(got, payload) {
					log.Printf("(conn %d %s) - echo mismatch\n", i, c.LocalAddr())
					failures.Inc(1)
					return
				}

				latency.UpdateSince(start)
				results[i].echoes++
				results[i].bytes += int64(len(payload))
			}
		}(i)
	}
	wg.Wait()

	printPerfResult(out, latency, failures.Count(), results)
	return nil
}

func printPerfResult(out io.Writer, latency gometrics.Timer, failures int64, results []perfResult) {
	snapshot := latency.Snapshot()
	ps := snapshot.Percentiles([]float64{0.5, 0.95, 0.99})

	perConn := make([]float64, len(results))
	var totalBytes int64
	for i, r := range results {
		perConn[i] = float64(r.echoes)
		totalBytes += r.bytes
	}
	fairness := stats.NewFairnessStats(perConn)

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%-20s %d\n", "echoes", snapshot.Count())
	fmt.Fprintf(out, "%-20s %d\n", "failures", failures)
	fmt.Fprintf(out, "%-20s %.2f echoes/sec\n", "throughput", float64(snapshot.Count())/perfDuration.Seconds())
	fmt.Fprintf(out, "%-20s %.2f KB/sec\n", "bandwidth", float64(totalBytes)/1024/perfDuration.Seconds())
	fmt.Fprintf(out, "%-20s %s\n", "latency mean", time.Duration(snapshot.Mean()))
	fmt.Fprintf(out, "%-20s %s\n", "latency p50", time.Duration(ps[0]))
	fmt.Fprintf(out, "%-20s %s\n", "latency p95", time.Duration(ps[1]))
	fmt.Fprintf(out, "%-20s %s\n", "latency p99", time.Duration(ps[2]))
	fmt.Fprintf(out, "%-20s %s\n", "latency max", time.Duration(snapshot.Max()))
	fmt.Fprintf(out, "%-20s min %.0f / max %.0f echoes per connection (fairness %.2f)\n", "distribution", fairness.Min, fairness.Max, fairness.Fairness)
}
