package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/storenstra/facebatch/internal/preflight"
)

var configOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend run settings for this host",
	Long: `Inspects the host hardware (CPU, RAM, GPU) and recommends a concurrency
setting for the inference engine. A single GPU serves one swap at a time;
CPU-only hosts can run a few workers in parallel, slowly.`,
	RunE: runConfigRecommend,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configRecommendCmd)

	configRecommendCmd.Flags().StringVarP(&configOutput, "output", "o", "text",
		"Output format: text, json, yaml")
}

// Recommendation pairs the detected hardware with suggested settings.
type Recommendation struct {
	Hardware    preflight.Report `json:"hardware" yaml:"hardware"`
	Concurrency int              `json:"concurrency" yaml:"concurrency"`
	Rationale   string           `json:"rationale" yaml:"rationale"`
}

func runConfigRecommend(cmd *cobra.Command, args []string) error {
	report := preflight.Detect()

	rec := Recommendation{
		Hardware:    report,
		Concurrency: report.RecommendedConcurrency(),
	}
	if report.HasGPU {
		rec.Rationale = fmt.Sprintf("single GPU (%s): one inference at a time", report.GPUName)
	} else {
		rec.Rationale = fmt.Sprintf("no GPU, %d CPU threads: limited CPU fan-out", report.CPUThreads)
	}

	switch configOutput {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case "yaml":
		data, err := yaml.Marshal(rec)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	default:
		fmt.Printf("CPU: %s (%d threads)\n", rec.Hardware.CPUModel, rec.Hardware.CPUThreads)
		fmt.Printf("RAM: %.1f GB\n", float64(rec.Hardware.RAMBytes)/(1024*1024*1024))
		if rec.Hardware.HasGPU {
			fmt.Printf("GPU: %s\n", rec.Hardware.GPUName)
		} else {
			fmt.Println("GPU: none detected")
		}
		fmt.Printf("\nRecommended concurrency: %d\n", rec.Concurrency)
		fmt.Printf("Rationale: %s\n", rec.Rationale)
		return nil
	}
}
