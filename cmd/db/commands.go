package db

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gorient/gorient/cmd/util"
	"github.com/gorient/gorient/proto"
)

var (
	createCmd = &cobra.Command{
		Use:   "create <name>",
		Short: "Create a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			dbType := viper.GetString("type")
			storage := viper.GetString("storage")
			if err := orient.DbCreate(args[0], dbType, storage); err != nil {
				return err
			}
			fmt.Printf("database %q created (%s, %s)\n", args[0], dbType, storage)
			return nil
		},
	}

	dropCmd = &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if err := orient.DbDrop(args[0], viper.GetString("storage")); err != nil {
				return err
			}
			fmt.Printf("database %q dropped\n", args[0])
			return nil
		},
	}

	existsCmd = &cobra.Command{
		Use:   "exists <name>",
		Short: "Check whether a database exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			exists, err := orient.DbExists(args[0], viper.GetString("storage"))
			if err != nil {
				return err
			}
			fmt.Printf("%t\n", exists)
			return nil
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the databases hosted by the server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			databases, err := orient.DbList()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(databases))
			for name := range databases {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%-24s %v\n", name, databases[name])
			}
			return nil
		},
	}

	infoCmd = &cobra.Command{
		Use:   "info <name>",
		Short: "Show size, record count and clusters of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// size and counts are db-scoped, so reopen the session on
			// the target database
			user, password := util.GetCredentials()
			if _, err := orient.Open(args[0], user, password); err != nil {
				return err
			}

			size, err := orient.DbSize()
			if err != nil {
				return err
			}
			count, err := orient.DbCountRecords()
			if err != nil {
				return err
			}
			clusters, err := orient.DbReload()
			if err != nil {
				return err
			}

			fmt.Printf("database: %s\n", args[0])
			fmt.Printf("size:     %d bytes\n", size)
			fmt.Printf("records:  %d\n", count)
			fmt.Printf("clusters: %d\n", len(clusters))
			for _, cluster := range clusters {
				fmt.Printf("  %-20s id=%d\n", cluster.Name, cluster.ID)
			}
			return nil
		},
	}

	shutdownCmd = &cobra.Command{
		Use:   "shutdown",
		Short: "Stop the remote server process",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			user, password := util.GetCredentials()
			if err := orient.Shutdown(user, password); err != nil {
				return err
			}
			fmt.Println("server shutdown requested")
			return nil
		},
	}
)

func init() {
	for _, cmd := range []*cobra.Command{createCmd, dropCmd, existsCmd} {
		cmd.Flags().String("storage", proto.StoragePLocal,
			util.WrapString("Storage type (plocal, memory)"))
	}
	createCmd.Flags().String("type", proto.DbTypeDocument,
		util.WrapString("Database type (document, graph)"))
}
