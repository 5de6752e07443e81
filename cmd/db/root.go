package db

import (
	"github.com/spf13/cobra"

	"github.com/gorient/gorient/client"
	"github.com/gorient/gorient/cmd/util"
)

var (
	orient *client.Client

	// DatabaseCommands represents the database administration command group
	DatabaseCommands = &cobra.Command{
		Use:               "db",
		Short:             "Perform database administration operations",
		PersistentPreRunE: setupClient,
		PersistentPostRun: teardownClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common connection flags to the db command group
	util.SetupClientFlags(DatabaseCommands)

	// Add subcommands
	DatabaseCommands.AddCommand(createCmd)
	DatabaseCommands.AddCommand(dropCmd)
	DatabaseCommands.AddCommand(existsCmd)
	DatabaseCommands.AddCommand(listCmd)
	DatabaseCommands.AddCommand(infoCmd)
	DatabaseCommands.AddCommand(shutdownCmd)
}

// setupClient dials the server and authenticates at the server level
func setupClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	c, err := util.NewConnectedClient()
	if err != nil {
		return err
	}
	orient = c
	return nil
}

func teardownClient(_ *cobra.Command, _ []string) {
	if orient != nil {
		_ = orient.Close()
	}
}
