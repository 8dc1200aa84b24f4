package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-hue/internal/bridges/hue"
	"github.com/nerrad567/gray-logic-hue/internal/bus"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "huebridge",
		Short:         "Philips Hue adapter for the Gray Logic signal bus",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.configPath)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", getConfigPath(),
		"path to the YAML config file (env "+configPathEnv+")")

	root.AddCommand(newServeCmd(opts), newRefreshCmd(opts), newSetCmd(opts))
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the adapter until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.configPath)
		},
	}
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Query every registered device once and print its state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), opts.configPath, publish, cmd.OutOrStdout(),
				func(a *hue.Adapter) error {
					return a.RefreshAll(cmd.Context())
				})
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "also publish the results to MQTT")
	return cmd
}

func newSetCmd(opts *rootOptions) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "set <device_id> <on|off>",
		Short: "Switch one light or group",
		Example: `  huebridge set L3 on
  huebridge set G1 off --publish`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if hue.Classify(id).Kind == hue.KindUnknown {
				return fmt.Errorf("device id %q must start with L or G", id)
			}
			desired, ok := hue.ParseDesiredState(args[1])
			if !ok {
				return fmt.Errorf("state must be on or off, got %q", args[1])
			}

			return runOnce(cmd.Context(), opts.configPath, publish, cmd.OutOrStdout(),
				func(a *hue.Adapter) error {
					return a.ApplyState(cmd.Context(), id, desired)
				})
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "also publish the result to MQTT")
	return cmd
}

// printBroadcast writes one state broadcast as a JSON line.
func printBroadcast(w io.Writer, s bus.StateBroadcast) {
	data, err := json.Marshal(bus.NewStateMessage(s))
	if err != nil {
		return
	}
	fmt.Fprintln(w, string(data))
}
