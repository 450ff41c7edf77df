package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xiaot623/negarena/pkg/syncclient"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// app holds the flags shared by every subcommand.
type app struct {
	server string
	output string
}

func (a *app) client() *syncclient.Client {
	return syncclient.NewClient(a.server)
}

func (a *app) validateOutput() error {
	if a.output != outputText && a.output != outputJSON {
		return fmt.Errorf("unknown output format %q (want text or json)", a.output)
	}
	return nil
}

// newRootCmd creates the root negctl command with all subcommands attached.
func newRootCmd() *cobra.Command {
	a := &app{}
	server := os.Getenv("NEGARENA_URL")
	if server == "" {
		server = "http://localhost:8080"
	}

	cmd := &cobra.Command{
		Use:           "negctl",
		Short:         "Control negotiation sessions and tournaments",
		Long:          "negctl starts, inspects and controls sessions on a negarena server.\nThe server address defaults to $NEGARENA_URL.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.validateOutput()
		},
	}
	cmd.PersistentFlags().StringVar(&a.server, "server", server, "server base URL")
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", outputText, "output format: text or json")

	cmd.AddCommand(
		newStartCmd(a),
		newGetCmd(a),
		newListCmd(a),
		newWatchCmd(a),
		newControlCmd(a, "pause", "Pause a running session at its next step"),
		newControlCmd(a, "resume", "Resume a paused session"),
		newControlCmd(a, "cancel", "Cancel a session"),
		newDeleteCmd(a),
		newArchiveCmd(a),
	)
	return cmd
}
