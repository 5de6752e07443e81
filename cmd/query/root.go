package query

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gorient/gorient/client"
	"github.com/gorient/gorient/cmd/util"
	"github.com/gorient/gorient/otypes"
)

var (
	orient *client.Client

	// QueryCommands represents the query command group
	QueryCommands = &cobra.Command{
		Use:               "query",
		Short:             "Run SQL queries, commands and scripts",
		PersistentPreRunE: setupClient,
		PersistentPostRun: teardownClient,
	}

	selectCmd = &cobra.Command{
		Use:   "select <sql>",
		Short: "Run a synchronous SQL query and print the matching records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			if viper.GetBool("stream") {
				return orient.QueryAsync(args[0], viper.GetString("fetch-plan"),
					func(rec *otypes.Record) { fmt.Println(rec) })
			}

			records, err := orient.Query(args[0], int32(viper.GetInt("limit")))
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Println(rec)
			}
			fmt.Printf("(%d records)\n", len(records))
			return nil
		},
	}

	execCmd = &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run a non-idempotent SQL command (INSERT, UPDATE, ...)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			result, err := orient.Command(args[0])
			if err != nil {
				return err
			}
			switch {
			case result.Scalar != nil:
				fmt.Println(result.Scalar)
			case len(result.Records) > 0:
				for _, rec := range result.Records {
					fmt.Println(rec)
				}
			default:
				fmt.Println("ok")
			}
			return nil
		},
	}

	scriptCmd = &cobra.Command{
		Use:   "script <sql-script>",
		Short: "Run a server-side SQL script",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			result, err := orient.Script(args[0])
			if err != nil {
				return err
			}
			for _, rec := range result.Records {
				fmt.Println(rec)
			}
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common connection flags plus the target database
	util.SetupClientFlags(QueryCommands)
	QueryCommands.PersistentFlags().String("db", "", util.WrapString("Database to open"))

	selectCmd.Flags().Int("limit", 0, util.WrapString("Maximum number of records, 0 for unlimited"))
	selectCmd.Flags().Bool("stream", false, util.WrapString("Stream results record by record (async mode)"))
	selectCmd.Flags().String("fetch-plan", "*:0", util.WrapString("Fetch plan for streamed queries"))

	// Add subcommands
	QueryCommands.AddCommand(selectCmd)
	QueryCommands.AddCommand(execCmd)
	QueryCommands.AddCommand(scriptCmd)
}

// setupClient dials the server and opens the target database
func setupClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	c, err := util.NewOpenedClient(viper.GetString("db"))
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
