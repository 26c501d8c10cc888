// Package cli implements the covenantctl commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/covenantlab/config"
	"github.com/Klingon-tech/covenantlab/internal/log"
	"github.com/Klingon-tech/covenantlab/internal/storage"
	"github.com/Klingon-tech/covenantlab/internal/utxo"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Version is set at build time.
var Version = "0.1.0-dev"

// options holds the global flags and the configuration they resolve to.
type options struct {
	configFile string
	network    string
	dataDir    string
	logLevel   string

	cfg *config.Config
}

// NewRootCommand builds the covenantctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "covenantctl",
		Short: "Inspect and route covenant transactions",
		Long: `covenantctl decodes covenant commitments, quotes and routes trades against
pools kept in a local snapshot, and computes loan interest.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "conf", "", "configuration file path")
	root.PersistentFlags().StringVar(&opts.network, "network", "", "mainnet (default) or chipnet")
	root.PersistentFlags().StringVar(&opts.dataDir, "datadir", "", "data directory (default: ~/.covenantlab)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "trace, debug, info, warn, error or disabled")

	root.AddCommand(
		newVersionCmd(),
		newDecodeCmd(),
		newQuoteCmd(opts),
		newRouteCmd(opts),
		newInterestCmd(),
		newPoolsCmd(opts),
	)
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// load resolves the configuration and initializes logging.
func (o *options) load() error {
	cfg, err := config.Load(o.configFile, config.NetworkType(o.network))
	if err != nil {
		return err
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.logLevel != "" {
		if !log.ValidLevel(o.logLevel) {
			return fmt.Errorf("invalid log level %q", o.logLevel)
		}
		cfg.Log.Level = o.logLevel
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	o.cfg = cfg
	return nil
}

// openSnapshot opens the network's namespace of the snapshot database. The
// returned func closes the database.
func (o *options) openSnapshot() (*utxo.Store, func(), error) {
	if err := config.EnsureDataDirs(o.cfg); err != nil {
		return nil, nil, err
	}
	db, err := storage.NewBadger(o.cfg.SnapshotDir())
	if err != nil {
		return nil, nil, err
	}
	store := utxo.NewStore(storage.NewPrefixDB(db, o.cfg.SnapshotPrefix()))
	closeFn := func() {
		if err := db.Close(); err != nil {
			log.CLI.Warn().Err(err).Msg("closing snapshot")
		}
	}
	return store, closeFn, nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func parseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}

// tradeSides returns the supply and demand categories for selling sell
// against token.
func tradeSides(token, sell string) (supply, demand types.TokenID, err error) {
	id, err := types.ParseTokenID(token)
	if err != nil {
		return supply, demand, err
	}
	if id.IsNative() {
		return supply, demand, fmt.Errorf("--token must be a token category")
	}
	switch sell {
	case types.NativeName:
		return types.NativeTokenID, id, nil
	case "token":
		return id, types.NativeTokenID, nil
	default:
		return supply, demand, fmt.Errorf("--sell must be %q or %q", types.NativeName, "token")
	}
}
