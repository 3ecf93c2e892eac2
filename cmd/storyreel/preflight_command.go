package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"storyreel/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var checkReachability bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "preflight <project-id>",
		Short: "Validate a project's buildability without starting a render",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			manager, err := ctx.newManager()
			if err != nil {
				return err
			}

			result, err := manager.Preflight(cmd.Context(), args[0], checkReachability)
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(result.Report)
			}

			fmt.Printf("can_build: %v\n", result.Report.CanBuild)
			fmt.Printf("total duration: %d ms across %d scenes\n", result.TotalMS, len(result.Timings))

			rows := make([][]string, 0, len(result.Timings))
			for _, t := range result.Timings {
				rows = append(rows, []string{
					strconv.Itoa(t.Ordinal),
					strconv.FormatInt(t.StartMS, 10),
					strconv.FormatInt(t.DurationMS, 10),
					string(t.Source),
				})
			}
			fmt.Println(renderTable(
				[]string{"Scene", "Start (ms)", "Duration (ms)", "Source"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
			))

			printFindings("Errors", result.Report.Errors)
			printFindings("Warnings", result.Report.Warnings)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkReachability, "check-reachability", false, "Probe visual asset locators over the network")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the raw preflight report as JSON")
	return cmd
}

func printFindings(label string, findings []preflight.Finding) {
	if len(findings) == 0 {
		return
	}
	fmt.Printf("%s:\n", label)
	for _, finding := range findings {
		scene := ""
		if finding.SceneOrdinal > 0 {
			scene = fmt.Sprintf(" (scene %d)", finding.SceneOrdinal)
		}
		fmt.Printf("  %s%s: %s\n", finding.Code, scene, finding.Message)
		if finding.Hint != "" {
			fmt.Printf("    hint: %s\n", finding.Hint)
		}
	}
}
