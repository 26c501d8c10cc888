package cli

import (
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/covenantlab/internal/accrual"
)

func newInterestCmd() *cobra.Command {
	var (
		principal uint64
		rateBP    uint16
		since     int64
		now       int64
	)
	cmd := &cobra.Command{
		Use:   "interest",
		Short: "Compute the interest owed on a loan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if now == 0 {
				now = time.Now().Unix()
			}
			p := new(big.Int).SetUint64(principal)
			bp := big.NewInt(int64(rateBP))
			interest, err := accrual.InterestOwed(p, bp, big.NewInt(now), big.NewInt(since))
			if err != nil {
				return err
			}
			total := new(big.Int).Add(p, interest)
			return printJSON(cmd.OutOrStdout(), struct {
				Principal *big.Int `json:"principal"`
				Interest  *big.Int `json:"interest"`
				TotalOwed *big.Int `json:"total_owed"`
				Seconds   int64    `json:"seconds"`
			}{p, interest, total, now - since})
		},
	}
	cmd.Flags().Uint64Var(&principal, "principal", 0, "loan principal in token units")
	cmd.Flags().Uint16Var(&rateBP, "rate-bp", 0, "annual interest in basis points")
	cmd.Flags().Int64Var(&since, "since", 0, "loan timestamp (unix seconds)")
	cmd.Flags().Int64Var(&now, "now", 0, "evaluation time (unix seconds, default: current time)")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("since")
	return cmd
}
