package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storenstra/facebatch/internal/config"
	"github.com/storenstra/facebatch/internal/controller"
	"github.com/storenstra/facebatch/internal/engine"
	"github.com/storenstra/facebatch/pkg/logging"
	"github.com/storenstra/facebatch/pkg/models"
	"github.com/storenstra/facebatch/pkg/shutdown"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process an input directory",
	Long: `Scan the input directory, validate the reference face, and swap it into
every supported video and photo. Failures on individual files are recorded
and the batch continues; statistics.json and events.log land in the output
directory.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("input", "i", "", "input directory containing media and the reference face")
	runCmd.Flags().StringP("output", "o", "", "output directory for swapped files and run artifacts")
	runCmd.Flags().IntP("concurrency", "c", config.DefaultConcurrency, "worker count (keep at 1 for a single GPU)")
	runCmd.Flags().Duration("job-timeout", config.DefaultJobTimeout, "per-file timeout for the inference engine")
	runCmd.Flags().Int("retry-timeouts", 0, "retry attempts for jobs that fail with a timeout")
	runCmd.Flags().String("engine-cmd", "", "inference engine executable")
	runCmd.Flags().StringSlice("engine-args", nil, "extra arguments passed to the engine before -s/-t/-o")
	runCmd.Flags().String("engine-workdir", "", "working directory for the engine process")
	runCmd.Flags().String("metrics-listen", "", "expose /metrics and /progress on this address (e.g. :9105)")
	runCmd.Flags().Bool("log-json", false, "write log lines as JSON")

	viper.BindPFlag("input_dir", runCmd.Flags().Lookup("input"))
	viper.BindPFlag("output_dir", runCmd.Flags().Lookup("output"))
	viper.BindPFlag("concurrency", runCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("job_timeout", runCmd.Flags().Lookup("job-timeout"))
	viper.BindPFlag("retry_timeouts", runCmd.Flags().Lookup("retry-timeouts"))
	viper.BindPFlag("engine_command", runCmd.Flags().Lookup("engine-cmd"))
	viper.BindPFlag("engine_args", runCmd.Flags().Lookup("engine-args"))
	viper.BindPFlag("engine_workdir", runCmd.Flags().Lookup("engine-workdir"))
	viper.BindPFlag("metrics_listen", runCmd.Flags().Lookup("metrics-listen"))
	viper.BindPFlag("log_json", runCmd.Flags().Lookup("log-json"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}
	cfg.Verbose = verbose
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := logging.INFO
	if cfg.Verbose {
		level = logging.DEBUG
	}
	log, err := logging.NewRunLogger(cfg.OutputDir, "run.log", level, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer log.Close()

	mgr := shutdown.New(10 * time.Second)
	mgr.Listen(func(sig os.Signal) {
		log.Warn(fmt.Sprintf("Received %v: finishing in-flight jobs, dispatching nothing new (send again to force quit)", sig))
	})

	eng := engine.NewFaceFusionEngine(cfg.EngineCommand, cfg.EngineArgs, cfg.EngineWorkDir)
	adapter := engine.NewAdapter(eng, cfg.JobTimeout, cfg.RetryTimeouts)
	ctrl := controller.New(cfg, log, adapter)

	result := ctrl.Run(mgr.Context())

	if result.Stats != nil {
		renderSummary(result.Stats)
	}

	if result.Outcome == controller.OutcomeFatalAbort {
		return fmt.Errorf("run aborted: %w", result.FatalErr)
	}
	return nil
}

// renderSummary prints the end-of-run table.
func renderSummary(stats *models.RunStatistics) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")

	table.Append("Run ID", stats.RunID)
	table.Append("Total", fmt.Sprintf("%d", stats.Total))
	table.Append("Successful", fmt.Sprintf("%d (%.1f%%)", stats.Succeeded, stats.SuccessRate()))
	table.Append("Failed", fmt.Sprintf("%d", stats.Failed))
	table.Append("Elapsed", fmt.Sprintf("%.1f min", stats.ElapsedSeconds/60))
	for _, kind := range models.FailureKinds() {
		if n := stats.FailuresByKind[kind]; n > 0 {
			table.Append("  "+string(kind), fmt.Sprintf("%d", n))
		}
	}

	table.Render()
}
