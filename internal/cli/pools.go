package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/covenantlab/internal/cauldron"
	"github.com/Klingon-tech/covenantlab/internal/log"
	"github.com/Klingon-tech/covenantlab/internal/router"
	"github.com/Klingon-tech/covenantlab/internal/utxo"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

func newPoolsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pools",
		Short: "Manage the pool snapshot",
	}

	var replace bool
	importCmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import pool UTXOs into the snapshot",
		Long: `Import reads a JSON array of {"utxo": ..., "redeem_script": "<hex>"} objects.
Every entry must be a valid pool; the import is rejected otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var entries []*utxo.Entry
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			created := make([]*utxo.Entry, 0, len(entries))
			for i, e := range entries {
				p, err := router.NewPool(e.UTXO, e.RedeemScript)
				if err != nil {
					return fmt.Errorf("entry %d: %w", i, err)
				}
				created = append(created, cauldron.PoolEntry(p))
			}

			store, closeFn, err := opts.openSnapshot()
			if err != nil {
				return err
			}
			defer closeFn()
			if replace {
				if err := store.ClearAll(); err != nil {
					return err
				}
			}
			if err := store.Apply(nil, created); err != nil {
				return err
			}
			log.CLI.Info().Int("pools", len(created)).Str("network", string(opts.cfg.Network)).Msg("imported pools")
			commitment, err := utxo.Commitment(store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d pools, snapshot %s\n", len(created), commitment)
			return nil
		},
	}
	importCmd.Flags().BoolVar(&replace, "replace", false, "clear the snapshot before importing")

	var token string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored pools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := opts.openSnapshot()
			if err != nil {
				return err
			}
			defer closeFn()

			var entries []*utxo.Entry
			if token != "" {
				id, err := types.ParseTokenID(token)
				if err != nil {
					return err
				}
				entries, err = store.ByCategory(id)
				if err != nil {
					return err
				}
			} else {
				entries, err = store.ByKind(utxo.KindPool)
				if err != nil {
					return err
				}
			}

			type row struct {
				Outpoint     string           `json:"outpoint"`
				TokenID      types.TokenID    `json:"token_id"`
				NativeAmount uint64           `json:"native_amount"`
				TokenAmount  uint64           `json:"token_amount"`
				WithdrawPKH  types.PubKeyHash `json:"withdraw_pkh"`
			}
			rows := []row{}
			for _, e := range entries {
				if e.Kind != utxo.KindPool {
					continue
				}
				p, err := router.NewPool(e.UTXO, e.RedeemScript)
				if err != nil {
					log.CLI.Warn().Err(err).Str("utxo", e.UTXO.Outpoint.String()).Msg("stored pool does not parse")
					continue
				}
				rows = append(rows, row{
					Outpoint:     p.UTXO.Outpoint.String(),
					TokenID:      p.TokenID(),
					NativeAmount: p.UTXO.Output.Amount,
					TokenAmount:  p.UTXO.Output.Token.Amount,
					WithdrawPKH:  p.Params.WithdrawPKH,
				})
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
	listCmd.Flags().StringVar(&token, "token", "", "only list pools of this token category")

	cmd.AddCommand(importCmd, listCmd)
	return cmd
}
