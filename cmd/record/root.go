package record

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gorient/gorient/client"
	"github.com/gorient/gorient/cmd/util"
)

var (
	orient *client.Client

	// RecordCommands represents the record command group
	RecordCommands = &cobra.Command{
		Use:               "record",
		Short:             "Perform single-record operations",
		PersistentPreRunE: setupClient,
		PersistentPostRun: teardownClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common connection flags plus the target database
	util.SetupClientFlags(RecordCommands)
	RecordCommands.PersistentFlags().String("db", "", util.WrapString("Database to open"))

	// Add subcommands
	RecordCommands.AddCommand(loadCmd)
	RecordCommands.AddCommand(createCmd)
	RecordCommands.AddCommand(deleteCmd)
	RecordCommands.AddCommand(perfTestCmd)
}

// setupClient dials the server and opens the target database
func setupClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	db := viper.GetString("db")
	c, err := util.NewOpenedClient(db)
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
