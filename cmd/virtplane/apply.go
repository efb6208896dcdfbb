package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/virtplane/pkg/log"
	"github.com/cuemby/virtplane/pkg/manager"
	"github.com/cuemby/virtplane/pkg/manifest"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a manifest to a fresh in-process control plane",
	Long: `Decode a manifest, apply it to an empty in-process control plane and
print what was created. Useful to check that a manifest is valid and that
its references resolve before handing it to 'virtplane serve'.

Examples:
  # Check an inventory manifest
  virtplane apply -f inventory.yaml

  # Print the result as YAML
  virtplane apply -f inventory.yaml -o yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	applyCmd.Flags().StringP("output", "o", "table", "Output format: table or yaml")
	applyCmd.Flags().String("config", "", "Path to a YAML config file")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "yaml" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	cfg := manager.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := manager.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	// apply is a one-shot command; keep stdout for the result
	cfg.Log.Level = log.WarnLevel
	cfg.Log.Output = cmd.ErrOrStderr()
	log.Init(cfg.Log)

	mgr, err := manager.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	defer mgr.Shutdown()

	applied, err := manifest.NewApplier(mgr).ApplyFile(filename)
	if printErr := printApplied(cmd.OutOrStdout(), output, applied); printErr != nil {
		return printErr
	}
	return err
}

func printApplied(w io.Writer, format string, applied []manifest.Applied) error {
	if len(applied) == 0 {
		return nil
	}
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(applied); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tPROJECT\tNAME\tID\tACTION")
	for _, a := range applied {
		project := a.Project
		if project == "" {
			project = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Kind, project, a.Name, a.ID, a.Action)
	}
	return tw.Flush()
}
