package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/covenantlab/internal/cauldron"
	"github.com/Klingon-tech/covenantlab/internal/router"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

type poolQuote struct {
	Pool string `json:"pool"`
	router.PoolQuote
}

func newQuoteCmd(opts *options) *cobra.Command {
	var token, sell string
	cmd := &cobra.Command{
		Use:   "quote <supply-amount>",
		Short: "Quote a supply amount against every stored pool of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			supplyID, _, err := tradeSides(token, sell)
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			pools, err := opts.loadPools(token)
			if err != nil {
				return err
			}
			quotes := make([]poolQuote, 0, len(pools))
			for _, p := range pools {
				q, err := router.Quote(p, supplyID, amount)
				if err != nil {
					return fmt.Errorf("pool %s: %w", p.UTXO.Outpoint, err)
				}
				quotes = append(quotes, poolQuote{Pool: p.UTXO.Outpoint.String(), PoolQuote: q})
			}
			return printJSON(cmd.OutOrStdout(), quotes)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token category the pools trade")
	cmd.Flags().StringVar(&sell, "sell", types.NativeName, "side supplied to the pools: native or token")
	return cmd
}

func newRouteCmd(opts *options) *cobra.Command {
	var token, sell string
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Construct a trade across the stored pools of a token",
	}
	cmd.PersistentFlags().StringVar(&token, "token", "", "token category the pools trade")
	cmd.PersistentFlags().StringVar(&sell, "sell", types.NativeName, "side supplied to the pools: native or token")

	route := func(use, short string, build func(supply, demand types.TokenID, arg string, pools []router.Pool, fee *numeric.Fraction) (*router.TradeResult, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				supplyID, demandID, err := tradeSides(token, sell)
				if err != nil {
					return err
				}
				pools, err := opts.loadPools(token)
				if err != nil {
					return err
				}
				fee, err := opts.cfg.FeeRate()
				if err != nil {
					return err
				}
				res, err := build(supplyID, demandID, args[0], pools, &fee)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			},
		}
	}

	cmd.AddCommand(
		route("best <target-demand>", "Fill a target demand at the best rate", func(s, d types.TokenID, arg string, pools []router.Pool, fee *numeric.Fraction) (*router.TradeResult, error) {
			target, err := parseAmount(arg)
			if err != nil {
				return nil, err
			}
			return router.ConstructTradeBestRateForTargetDemand(s, d, target, pools, fee)
		}),
		route("below <rate>", "Take everything below a marginal rate (n/d supply units per demand unit)", func(s, d types.TokenID, arg string, pools []router.Pool, fee *numeric.Fraction) (*router.TradeResult, error) {
			rate, err := numeric.ParseFraction(arg)
			if err != nil {
				return nil, err
			}
			return router.ConstructTradeAvailableAmountBelowTargetRate(s, d, rate, pools, fee)
		}),
		route("avg <rate>", "Take as much as keeps the average rate at or below rate (n/d supply units per demand unit)", func(s, d types.TokenID, arg string, pools []router.Pool, fee *numeric.Fraction) (*router.TradeResult, error) {
			rate, err := numeric.ParseFraction(arg)
			if err != nil {
				return nil, err
			}
			return router.ConstructTradeAvailableAmountForTargetAvgRate(s, d, rate, pools, fee)
		}),
	)
	return cmd
}

func (o *options) loadPools(token string) ([]router.Pool, error) {
	id, err := types.ParseTokenID(token)
	if err != nil {
		return nil, err
	}
	store, closeFn, err := o.openSnapshot()
	if err != nil {
		return nil, err
	}
	defer closeFn()
	pools, err := cauldron.LoadPools(store, id)
	if err != nil {
		return nil, err
	}
	if len(pools) == 0 {
		return nil, fmt.Errorf("no pools stored for token %s", id)
	}
	return pools, nil
}
