package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/signalbox/internal/storage"
)

func newHealthCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe every storage provider and print its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			a.pool.CheckNow(cmd.Context())
			return printHealth(cmd.OutOrStdout(), a.pool.Status())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	return cmd
}

func printHealth(out io.Writer, statuses []storage.ProviderStatus) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRIORITY\tPROVIDER\tHEALTH\tSINCE\tLAST ERROR")
	healthy := 0
	for _, st := range statuses {
		if st.Health == storage.Healthy.String() {
			healthy++
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			st.Priority, st.Name, st.Health, st.LastChange.Format(time.RFC3339), st.LastError)
	}
	w.Flush()

	if healthy == 0 {
		return fmt.Errorf("no healthy storage provider: %w", storage.ErrStorageUnavailable)
	}
	return nil
}

