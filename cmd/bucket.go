// Handle the "mbucket mb", "rb", and "supported" commands
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mbCmd = &cobra.Command{
	Use:   "mb <bucket>",
	Short: "Create a bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := log.WithContext(cmd.Context())
		if err := client.CreateBucket(ctx, args[0]); err != nil {
			return err
		}
		log.Infof("created bucket %s", args[0])
		return nil
	},
}

var rbCmd = &cobra.Command{
	Use:   "rb <bucket>",
	Short: "Remove an empty bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := log.WithContext(cmd.Context())
		if err := client.DeleteBucket(ctx, args[0]); err != nil {
			return err
		}
		log.Infof("removed bucket %s", args[0])
		return nil
	},
}

var supportedCmd = &cobra.Command{
	Use:   "supported",
	Short: "Check whether the service offers the buckets API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ok, err := client.IsSupported(log.WithContext(cmd.Context()))
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mbCmd, rbCmd, supportedCmd)
}
