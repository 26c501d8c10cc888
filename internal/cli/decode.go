package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/covenantlab/internal/codec"
)

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode covenant commitments and scripts",
	}
	cmd.AddCommand(
		decodeSub("delphi <hex>", "Decode an oracle price commitment", func(b []byte) (interface{}, error) {
			return codec.DecodeDelphiCommitment(b)
		}),
		decodeSub("loan <hex>", "Decode a loan NFT commitment", func(b []byte) (interface{}, error) {
			c, err := codec.DecodeLoanCommitment(b)
			if err != nil {
				return nil, err
			}
			return struct {
				Version int `json:"version"`
				codec.LoanCommitment
			}{c.Version(), c}, nil
		}),
		decodeSub("agent <hex>", "Decode a loan agent NFT commitment", func(b []byte) (interface{}, error) {
			c, err := codec.DecodeLoanAgentCommitment(b)
			if err != nil {
				return nil, err
			}
			return struct {
				AgentID string `json:"agent_id"`
			}{hex.EncodeToString(c.AgentID[:])}, nil
		}),
		decodeSub("pool <hex>", "Decode a pool redeem script", func(b []byte) (interface{}, error) {
			p, ok := codec.ParsePoolRedeemScript(b)
			if !ok {
				return nil, fmt.Errorf("not a pool redeem script")
			}
			return p, nil
		}),
		decodeSub("unlock <hex>", "Decode a pool input's unlocking bytecode", func(b []byte) (interface{}, error) {
			p, purpose, ok := codec.ParsePoolUnlockingBytecode(b)
			if !ok {
				return nil, fmt.Errorf("not a pool unlocking bytecode")
			}
			return struct {
				Purpose string `json:"purpose"`
				codec.PoolParams
			}{purpose.String(), p}, nil
		}),
	)
	return cmd
}

func decodeSub(use, short string, decode func([]byte) (interface{}, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}
			v, err := decode(b)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
}
