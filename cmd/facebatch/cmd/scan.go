package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storenstra/facebatch/internal/config"
	"github.com/storenstra/facebatch/internal/inventory"
	"github.com/storenstra/facebatch/internal/jobs"
)

var scanJSON bool

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [input-dir]",
	Short: "Preview the inventory without processing anything",
	Long: `Scan an input directory and show what a run would do: the reference face,
every classified media item with its planned output path, and files that
would be ignored. No engine is invoked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "emit the inventory as JSON")
	scanCmd.Flags().StringP("output", "o", "output", "output directory used for planned paths")
}

func runScan(cmd *cobra.Command, args []string) error {
	inputDir := viper.GetString("input_dir")
	if len(args) > 0 {
		inputDir = args[0]
	}
	if inputDir == "" {
		return fmt.Errorf("input directory is required")
	}
	outputDir, _ := cmd.Flags().GetString("output")

	inv, err := inventory.Scan(inputDir, inventory.Options{
		ReferenceName: viper.GetString("reference_name"),
		MinRefWidth:   config.MinReferenceWidth,
		MinRefHeight:  config.MinReferenceHeight,
	})
	if err != nil {
		return err
	}

	jobList := jobs.Build(inv.Items, outputDir, viper.GetString("output_suffix"))

	if scanJSON {
		out := map[string]interface{}{
			"reference": inv.Reference,
			"jobs":      jobList,
			"ignored":   inv.Ignored,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Reference: %s (%dx%d)\n\n",
		inv.Reference.Path, inv.Reference.Width, inv.Reference.Height)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Job ID", "Kind", "Source", "Planned Output")
	for _, job := range jobList {
		table.Append(job.ID, string(job.Kind),
			filepath.Base(job.SourcePath), filepath.Base(job.DestPath))
	}
	table.Render()

	fmt.Printf("\n%d media files", len(jobList))
	if len(inv.Ignored) > 0 {
		fmt.Printf(", %d ignored: %v", len(inv.Ignored), inv.Ignored)
	}
	fmt.Println()
	return nil
}
