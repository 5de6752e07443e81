package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gorient/gorient/cmd/db"
	"github.com/gorient/gorient/cmd/query"
	"github.com/gorient/gorient/cmd/record"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "gorient",
		Short: "client for the OrientDB binary protocol",
		Long: fmt.Sprintf(`gorient (v%s)

A native client for the OrientDB binary network protocol:
database administration, record operations, SQL queries and
client-side transactions over a single TCP session.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of gorient",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gorient v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(db.DatabaseCommands)
	RootCmd.AddCommand(record.RecordCommands)
	RootCmd.AddCommand(query.QueryCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
