// Handle the "mbucket put", "get", "info", "chattr", and "rm" commands
package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aripsetiawan24/manta-buckets-go/buckets"
)

// Filled in by cobra argument parsing in init()
var putCmdConfig struct {
	file        string
	contentType string
	metadata    []string
}

var putCmd = &cobra.Command{
	Use:   "put <bucket> <object>",
	Short: "Upload an object from a file or stdin",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		var payload io.Reader = os.Stdin
		var size int64
		if putCmdConfig.file != "" {
			f, err := os.Open(putCmdConfig.file)
			if err != nil {
				return err
			}
			defer f.Close()
			if st, err := f.Stat(); err == nil {
				size = st.Size()
			}
			payload = f
		}

		md, err := parseMetadata(putCmdConfig.metadata)
		if err != nil {
			return err
		}

		ctx := log.WithContext(cmd.Context())
		err = client.CreateObject(ctx, args[0], args[1], payload, &buckets.PutOptions{
			ContentLength: size,
			ContentType:   putCmdConfig.contentType,
			Metadata:      md,
		})
		if err != nil {
			return err
		}
		log.Infof("uploaded %s/%s", args[0], args[1])
		return nil
	},
}

var getCmdConfig struct {
	output string
}

var getCmd = &cobra.Command{
	Use:   "get <bucket> <object>",
	Short: "Download an object to a file or stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		obj, err := client.GetObject(log.WithContext(cmd.Context()), args[0], args[1])
		if err != nil {
			return err
		}
		defer obj.Close()

		var out io.Writer = os.Stdout
		if getCmdConfig.output != "" {
			f, err := os.Create(getCmdConfig.output)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		_, err = io.Copy(out, obj)
		return err
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <bucket> [object]",
	Short: "Show a bucket's existence or an object's headers",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := log.WithContext(cmd.Context())
		if len(args) == 1 {
			if err := client.HeadBucket(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("bucket %s exists\n", args[0])
			return nil
		}

		info, err := client.StatObject(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("content-length: %d\n", info.ContentLength)
		fmt.Printf("content-type:   %s\n", info.ContentType)
		fmt.Printf("content-md5:    %s\n", info.ContentMD5)
		fmt.Printf("etag:           %s\n", info.ETag)

		keys := make([]string, 0, len(info.Metadata))
		for k := range info.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("m-%s: %s\n", k, info.Metadata[k])
		}
		return nil
	},
}

var chattrCmdConfig struct {
	metadata []string
}

var chattrCmd = &cobra.Command{
	Use:   "chattr <bucket> <object>",
	Short: "Replace an object's metadata without touching its payload",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		md, err := parseMetadata(chattrCmdConfig.metadata)
		if err != nil {
			return err
		}
		return client.PutObjectMetadata(log.WithContext(cmd.Context()), args[0], args[1], md)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <bucket> <object>",
	Short: "Remove an object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		return client.DeleteObject(log.WithContext(cmd.Context()), args[0], args[1])
	},
}

// parseMetadata turns repeated "key=value" flags into a metadata map.
func parseMetadata(pairs []string) (buckets.Metadata, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	md := make(buckets.Metadata, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("metadata must be key=value, got %q", pair)
		}
		md[k] = v
	}
	return md, nil
}

func init() {
	putCmd.Flags().StringVarP(&putCmdConfig.file, "file", "f", "", "read the payload from this file instead of stdin")
	putCmd.Flags().StringVar(&putCmdConfig.contentType, "content-type", "", "MIME type to store")
	putCmd.Flags().StringArrayVarP(&putCmdConfig.metadata, "metadata", "m", nil, "metadata key=value (repeatable)")
	getCmd.Flags().StringVarP(&getCmdConfig.output, "output", "o", "", "write the payload to this file instead of stdout")
	chattrCmd.Flags().StringArrayVarP(&chattrCmdConfig.metadata, "metadata", "m", nil, "metadata key=value (repeatable)")
	rootCmd.AddCommand(putCmd, getCmd, infoCmd, chattrCmd, rmCmd)
}
