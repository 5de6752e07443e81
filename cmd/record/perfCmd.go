package record

import (
	"fmt"
	"strings"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gorient/gorient/cmd/util"
	"github.com/gorient/gorient/otypes"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for record operations",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfClass   = "PerfTest"
	perfRecords = 100
	perfSkip    = make([]string, 0)
)

func init() {
	key := "records"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many records to create, load and delete"))
	key = "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. create,load)"))
	key = "class"
	perfTestCmd.Flags().String(key, "PerfTest", util.WrapString("Record class to benchmark against"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfRecords = viper.GetInt("records")
	perfClass = viper.GetString("class")
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	return nil
}

func shouldSkip(name string) bool {
	for _, skip := range perfSkip {
		if strings.TrimSpace(skip) == name {
			return true
		}
	}
	return false
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for record operations")
	fmt.Println()
	fmt.Println("Configuration:")
	cfg := util.GetClientConfig()
	fmt.Println(cfg.String())
	fmt.Printf("Records: %d\n", perfRecords)
	fmt.Println()

	registry := gometrics.NewRegistry()
	created := make([]otypes.RID, 0, perfRecords)

	if !shouldSkip("create") {
		timer := gometrics.GetOrRegisterTimer("create", registry)
		for i := 0; i < perfRecords; i++ {
			rec := otypes.NewRecordOfClass(perfClass, map[string]interface{}{
				"n":       int32(i),
				"payload": "benchmark",
			})
			var err error
			timer.Time(func() {
				err = orient.RecordCreate(-1, rec)
			})
			if err != nil {
				return fmt.Errorf("create %d: %w", i, err)
			}
			created = append(created, rec.RID)
		}
		printTimer("create", timer)
	}

	if !shouldSkip("load") && len(created) > 0 {
		timer := gometrics.GetOrRegisterTimer("load", registry)
		for _, rid := range created {
			var err error
			timer.Time(func() {
				_, err = orient.RecordLoad(rid, "")
			})
			if err != nil {
				return fmt.Errorf("load %s: %w", rid, err)
			}
		}
		printTimer("load", timer)
	}

	if !shouldSkip("query") {
		timer := gometrics.GetOrRegisterTimer("query", registry)
		var err error
		timer.Time(func() {
			_, err = orient.Query(fmt.Sprintf("select from %s", perfClass), int32(perfRecords))
		})
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		printTimer("query", timer)
	}

	// cleanup, timed as its own benchmark
	if len(created) > 0 {
		timer := gometrics.GetOrRegisterTimer("delete", registry)
		for _, rid := range created {
			var err error
			timer.Time(func() {
				_, err = orient.RecordDelete(rid, -1)
			})
			if err != nil {
				return fmt.Errorf("delete %s: %w", rid, err)
			}
		}
		printTimer("delete", timer)
	}

	return nil
}

func printTimer(name string, timer gometrics.Timer) {
	fmt.Printf("%-8s %6d ops  mean %-12s p95 %-12s p99 %-12s %8.1f ops/s\n",
		name,
		timer.Count(),
		util.FormatDuration(time.Duration(timer.Mean())),
		util.FormatDuration(time.Duration(timer.Percentile(0.95))),
		util.FormatDuration(time.Duration(timer.Percentile(0.99))),
		timer.RateMean(),
	)
}
