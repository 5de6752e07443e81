package record

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gorient/gorient/cmd/util"
	"github.com/gorient/gorient/otypes"
)

var (
	loadCmd = &cobra.Command{
		Use:   "load <rid>",
		Short: "Load a record by its id (e.g. #9:1)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			rid, err := otypes.ParseRID(args[0])
			if err != nil {
				return err
			}

			rec, err := orient.RecordLoad(rid, viper.GetString("fetch-plan"))
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Println("record not found")
				return nil
			}
			fmt.Println(rec)
			return nil
		},
	}

	createCmd = &cobra.Command{
		Use:   "create <class> <json-fields>",
		Short: "Create a record from a JSON field map",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			var fields map[string]interface{}
			if err := json.Unmarshal([]byte(args[1]), &fields); err != nil {
				return fmt.Errorf("parsing fields: %w", err)
			}

			clusterID := int16(viper.GetInt("cluster"))
			rec := otypes.NewRecordOfClass(args[0], fields)
			if err := orient.RecordCreate(clusterID, rec); err != nil {
				return err
			}
			fmt.Printf("created %s (version %d)\n", rec.RID, rec.Version)
			return nil
		},
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <rid>",
		Short: "Delete a record by its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			rid, err := otypes.ParseRID(args[0])
			if err != nil {
				return err
			}

			deleted, err := orient.RecordDelete(rid, int32(viper.GetInt("record-version")))
			if err != nil {
				return err
			}
			fmt.Printf("%t\n", deleted)
			return nil
		},
	}
)

func init() {
	loadCmd.Flags().String("fetch-plan", "*:0", util.WrapString("Fetch plan for eagerly loading related records"))
	createCmd.Flags().Int("cluster", -1, util.WrapString("Target cluster id, -1 for the class default"))
	deleteCmd.Flags().Int("record-version", -1, util.WrapString("Expected record version, -1 to skip the optimistic check"))
}
