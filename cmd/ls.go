// Handle the "mbucket ls" command
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aripsetiawan24/manta-buckets-go/buckets"
)

// Filled in by cobra argument parsing in init()
var lsCmdConfig struct {
	prefix string
	marker string
	limit  int
}

// lsCmd streams a bucket or object listing to stdout, printing each
// record as it is decoded.
var lsCmd = &cobra.Command{
	Use:   "ls [bucket]",
	Short: "List buckets, or the objects in a bucket",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := log.WithContext(cmd.Context())
		opts := buckets.ListOptions{
			Prefix: lsCmdConfig.prefix,
			Marker: lsCmdConfig.marker,
			Limit:  lsCmdConfig.limit,
		}

		if len(args) == 0 {
			st, err := client.ListBuckets(ctx, opts)
			if err != nil {
				return err
			}
			defer st.Close()
			for st.Next() {
				e := st.Entry()
				fmt.Printf("%s  %s\n", e.Mtime.Format("2006-01-02 15:04"), e.Name)
			}
			return st.Err()
		}

		st, err := client.ListObjects(ctx, args[0], opts)
		if err != nil {
			return err
		}
		defer st.Close()
		for st.Next() {
			e := st.Entry()
			fmt.Printf("%s  %10d  %s\n", e.Mtime.Format("2006-01-02 15:04"), e.Size, e.Name)
		}
		return st.Err()
	},
}

func init() {
	lsCmd.Flags().StringVar(&lsCmdConfig.prefix, "prefix", "", "list only names starting with this prefix")
	lsCmd.Flags().StringVar(&lsCmdConfig.marker, "marker", "", "start listing after this name")
	lsCmd.Flags().IntVar(&lsCmdConfig.limit, "limit", 0, "maximum number of records (0 = service default)")
	rootCmd.AddCommand(lsCmd)
}
