// Root of command-line argument parsing for the mbucket tool.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aripsetiawan24/manta-buckets-go/buckets"
	"github.com/aripsetiawan24/manta-buckets-go/internal/logger"
	"github.com/aripsetiawan24/manta-buckets-go/profile"
	"github.com/aripsetiawan24/manta-buckets-go/transport"
)

// Filled in by cobra argument parsing in init()
var rootCmdConfig struct {
	profilePath string
	url         string
	account     string
	keyID       string
	keyFile     string
	insecure    bool
	logLevel    string
}

// cfg is the private viper instance merging flags, MANTA_* environment
// variables, and defaults, in that precedence.
var cfg = viper.New()

var log *logger.Logger

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "mbucket",
	Short: "Command-line client for the buckets storage API",
	Long: `mbucket manages buckets and the objects inside them: create and
remove buckets, upload and download objects with user-defined metadata,
and stream listings without buffering them in memory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logger.New(&logger.Config{
			Level:  cfg.GetString("log-level"),
			Format: "console",
			Output: os.Stderr,
		})
	},
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error(err.Error())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootCmdConfig.profilePath, "profile", "", "path to a YAML connection profile")
	pf.StringVar(&rootCmdConfig.url, "url", "", "service base URL")
	pf.StringVar(&rootCmdConfig.account, "account", "", "account (login) name")
	pf.StringVar(&rootCmdConfig.keyID, "key-id", "", "registered key id, e.g. /account/keys/<fingerprint>")
	pf.StringVar(&rootCmdConfig.keyFile, "key-file", "", "path to the matching private key")
	pf.BoolVar(&rootCmdConfig.insecure, "insecure", false, "skip TLS certificate verification")
	pf.StringVar(&rootCmdConfig.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cfg.BindPFlag("url", pf.Lookup("url"))             //nolint:errcheck
	cfg.BindPFlag("account", pf.Lookup("account"))     //nolint:errcheck
	cfg.BindPFlag("key-id", pf.Lookup("key-id"))       //nolint:errcheck
	cfg.BindPFlag("key-file", pf.Lookup("key-file"))   //nolint:errcheck
	cfg.BindPFlag("insecure", pf.Lookup("insecure"))   //nolint:errcheck
	cfg.BindPFlag("log-level", pf.Lookup("log-level")) //nolint:errcheck

	cfg.BindEnv("url", "MANTA_URL")               //nolint:errcheck
	cfg.BindEnv("account", "MANTA_USER")          //nolint:errcheck
	cfg.BindEnv("key-id", "MANTA_KEY_ID")         //nolint:errcheck
	cfg.BindEnv("key-file", "MANTA_KEY_FILE")     //nolint:errcheck
	cfg.BindEnv("insecure", "MANTA_TLS_INSECURE") //nolint:errcheck
}

// resolveProfile merges --profile, flags/environment, and defaults into
// one validated profile.
func resolveProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		URL:      cfg.GetString("url"),
		Account:  cfg.GetString("account"),
		KeyID:    cfg.GetString("key-id"),
		KeyFile:  cfg.GetString("key-file"),
		Insecure: cfg.GetBool("insecure"),
	}
	if rootCmdConfig.profilePath != "" {
		fromFile, err := profile.Load(rootCmdConfig.profilePath)
		if err != nil {
			return nil, err
		}
		// Explicit flags and environment win over the profile file.
		p.Merge(fromFile)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// newClient builds a signed client from the resolved profile.
func newClient() (*buckets.Client, error) {
	p, err := resolveProfile()
	if err != nil {
		return nil, err
	}

	tcfg := transport.DefaultConfig()
	tcfg.KeyID = p.KeyID
	tcfg.InsecureSkipVerify = p.Insecure
	if p.KeyFile != "" {
		signer, err := transport.LoadKeySigner(p.KeyFile)
		if err != nil {
			return nil, err
		}
		tcfg.Signer = signer
	}

	return buckets.New(&buckets.Config{
		URL:       p.URL,
		Account:   p.Account,
		Transport: transport.New(tcfg),
	})
}
