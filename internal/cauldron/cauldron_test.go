package cauldron

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/covenantlab/internal/codec"
	"github.com/Klingon-tech/covenantlab/internal/compiler"
	"github.com/Klingon-tech/covenantlab/internal/payout"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/internal/router"
	"github.com/Klingon-tech/covenantlab/internal/storage"
	"github.com/Klingon-tech/covenantlab/internal/utxo"
	"github.com/Klingon-tech/covenantlab/internal/wallet"
	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

var testToken = types.TokenID{0x5a, 0x01}

func testKey(t *testing.T, b byte) *crypto.PrivateKey {
	t.Helper()
	secret := make([]byte, 32)
	secret[31] = b
	key, err := crypto.PrivateKeyFromBytes(secret)
	require.NoError(t, err)
	return key
}

func makePool(t *testing.T, owner *crypto.PrivateKey, idx byte, native, token uint64) router.Pool {
	t.Helper()
	redeem, err := codec.BuildPoolRedeemScript(owner.PubKeyHash().Bytes())
	require.NoError(t, err)
	p, err := router.NewPool(types.UTXO{
		Outpoint: types.Outpoint{TxID: types.Hash{0xee, idx}},
		Output: types.Output{
			LockingBytecode: codec.PoolLockingBytecode(redeem),
			Amount:          native,
			Token:           &types.TokenData{ID: testToken, Amount: token},
		},
	}, redeem)
	require.NoError(t, err)
	return p
}

func coin(t *testing.T, key *crypto.PrivateKey, idx byte, amount uint64, token *types.TokenData) wallet.SpendableCoin {
	t.Helper()
	c, err := wallet.NewP2PKHCoin(types.UTXO{
		Outpoint: types.Outpoint{TxID: types.Hash{0xf0, idx}},
		Output: types.Output{
			LockingBytecode: types.P2PKHLockingBytecode(key.PubKeyHash()),
			Amount:          amount,
			Token:           token,
		},
	}, key)
	require.NoError(t, err)
	return c
}

func newExchange() *Exchange {
	return NewExchange(compiler.NewLocal(), numeric.NewFraction(1, 1))
}

func changeTo(key *crypto.PrivateKey) []payout.Rule {
	return []payout.Rule{payout.ChangeRule{
		LockingBytecode:                     types.P2PKHLockingBytecode(key.PubKeyHash()),
		AddChangeToTxfeeWhenBCHChangeIsDust: true,
	}}
}

func TestExecuteTradeTokenForNative(t *testing.T) {
	owner, trader := testKey(t, 1), testKey(t, 2)
	pool := makePool(t, owner, 1, 1118498378, 1100)
	trade, err := router.ConstructTradeBestRateForTargetDemand(testToken, types.NativeTokenID, big.NewInt(228831958), []router.Pool{pool}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(284), trade.Summary.Supply.Int64())

	funding := []wallet.SpendableCoin{
		coin(t, trader, 1, 10_000, &types.TokenData{ID: testToken, Amount: 1000}),
		coin(t, trader, 2, 1_000_000, nil),
	}
	traderLock := types.P2PKHLockingBytecode(trader.PubKeyHash())

	res, err := newExchange().ExecuteTrade(TradeParams{
		Trade:                 trade,
		Funding:               funding,
		DemandLockingBytecode: traderLock,
		Rules:                 changeTo(trader),
	})
	require.NoError(t, err)

	next := res.Tx.Output(0).Output
	require.Equal(t, uint64(1118498378-228831958), next.Amount)
	require.Equal(t, uint64(1100+284), next.Token.Amount)
	require.Equal(t, pool.UTXO.Output.LockingBytecode, next.LockingBytecode)

	require.Len(t, res.Pools, 1)
	require.True(t, res.Pools[0].Invariant().Cmp(pool.Invariant()) >= 0)
	require.Equal(t, res.Tx.Hash, res.Pools[0].UTXO.Outpoint.TxID)

	demand := res.Payout.Payouts[0].Output
	require.Equal(t, traderLock, demand.LockingBytecode)
	require.Equal(t, uint64(228831958), demand.Amount)
	require.Nil(t, demand.Token)

	var tokenChange uint64
	for _, p := range res.Payout.Payouts {
		tokenChange += p.Output.TokenAmount(testToken)
	}
	require.Equal(t, uint64(1000-284), tokenChange)

	in := res.Tx.Transaction.Inputs[0].UnlockingBytecode
	_, purpose, ok := codec.ParsePoolUnlockingBytecode(in)
	require.True(t, ok)
	require.Equal(t, codec.PurposeTrade, purpose)
}

func TestExecuteTradeNativeForTokenAcrossPools(t *testing.T) {
	owner, trader := testKey(t, 1), testKey(t, 2)
	pools := []router.Pool{
		makePool(t, owner, 1, 10_000_000_000, 50_000),
		makePool(t, owner, 2, 20_000_000_000, 100_000),
	}
	trade, err := router.ConstructTradeBestRateForTargetDemand(types.NativeTokenID, testToken, big.NewInt(3000), pools, nil)
	require.NoError(t, err)
	require.Len(t, trade.Entries, 2)

	coins := []wallet.SpendableCoin{
		coin(t, trader, 1, 900_000_000, nil),
		coin(t, trader, 2, 500_000_000, nil),
		coin(t, trader, 3, 5_000, &types.TokenData{ID: testToken, Amount: 10}),
	}
	funding, err := SelectFunding(coins, trade, 100_000)
	require.NoError(t, err)
	for _, c := range funding {
		require.Nil(t, c.UTXO.Output.Token)
	}

	res, err := newExchange().ExecuteTrade(TradeParams{
		Trade:                 trade,
		Funding:               funding,
		DemandLockingBytecode: types.P2PKHLockingBytecode(trader.PubKeyHash()),
		Rules:                 changeTo(trader),
	})
	require.NoError(t, err)
	require.Len(t, res.Pools, 2)

	demand := res.Payout.Payouts[0].Output
	require.Equal(t, uint64(3000), demand.TokenAmount(testToken))
	for i, e := range trade.Entries {
		want, err := e.Pool.Apply(e)
		require.NoError(t, err)
		require.Equal(t, want, res.Tx.Output(i).Output)
	}
}

func TestExecuteTradeRejects(t *testing.T) {
	owner, trader := testKey(t, 1), testKey(t, 2)
	pool := makePool(t, owner, 1, 1118498378, 1100)
	trade, err := router.ConstructTradeBestRateForTargetDemand(testToken, types.NativeTokenID, big.NewInt(228831958), []router.Pool{pool}, nil)
	require.NoError(t, err)
	lock := types.P2PKHLockingBytecode(trader.PubKeyHash())

	x := newExchange()
	_, err = x.ExecuteTrade(TradeParams{Trade: &router.TradeResult{}, DemandLockingBytecode: lock})
	require.ErrorIs(t, err, protoerr.ErrValue)

	_, err = x.ExecuteTrade(TradeParams{Trade: trade})
	require.ErrorIs(t, err, protoerr.ErrValue)

	dup := *trade
	dup.Entries = append(append([]router.TradeEntry{}, trade.Entries...), trade.Entries...)
	_, err = x.ExecuteTrade(TradeParams{Trade: &dup, DemandLockingBytecode: lock})
	require.ErrorIs(t, err, protoerr.ErrValue)

	short := []wallet.SpendableCoin{coin(t, trader, 1, 10_000, &types.TokenData{ID: testToken, Amount: 100})}
	_, err = x.ExecuteTrade(TradeParams{Trade: trade, Funding: short, DemandLockingBytecode: lock, Rules: changeTo(trader)})
	require.ErrorIs(t, err, protoerr.ErrInsufficientFunds)

	_, err = (&Exchange{TxFeePerByte: numeric.NewFraction(1, 1)}).ExecuteTrade(TradeParams{Trade: trade, DemandLockingBytecode: lock})
	require.ErrorIs(t, err, protoerr.ErrValue)
}

func TestSelectFundingShortfall(t *testing.T) {
	owner, trader := testKey(t, 1), testKey(t, 2)
	pool := makePool(t, owner, 1, 1118498378, 1100)
	trade, err := router.ConstructTradeBestRateForTargetDemand(testToken, types.NativeTokenID, big.NewInt(228831958), []router.Pool{pool}, nil)
	require.NoError(t, err)

	coins := []wallet.SpendableCoin{coin(t, trader, 1, 10_000, &types.TokenData{ID: testToken, Amount: 1000})}
	_, err = SelectFunding(coins, trade, 5000)
	require.ErrorIs(t, err, wallet.ErrNoCoins)

	coins = append(coins, coin(t, trader, 2, 4000, nil))
	_, err = SelectFunding(coins, trade, 5000)
	require.ErrorIs(t, err, protoerr.ErrInsufficientFunds)

	coins = append(coins, coin(t, trader, 3, 4000, nil))
	got, err := SelectFunding(coins, trade, 5000)
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestWithdraw(t *testing.T) {
	owner := testKey(t, 1)
	pools := []router.Pool{
		makePool(t, owner, 1, 1_000_000, 1000),
		makePool(t, owner, 2, 2_000_000, 500),
	}

	res, err := newExchange().Withdraw(WithdrawParams{Pools: pools, OwnerKey: owner})
	require.NoError(t, err)
	require.Empty(t, res.Pools)
	require.Len(t, res.Payout.Payouts, 1)

	out := res.Payout.Payouts[0].Output
	require.Equal(t, types.P2PKHLockingBytecode(owner.PubKeyHash()), out.LockingBytecode)
	require.Equal(t, uint64(1500), out.TokenAmount(testToken))
	require.Equal(t, uint64(3_000_000)-res.Tx.TxFee, out.Amount)

	for i, in := range res.Tx.Transaction.Inputs {
		params, purpose, ok := codec.ParsePoolUnlockingBytecode(in.UnlockingBytecode)
		require.True(t, ok, "input %d", i)
		require.Equal(t, codec.PurposeWithdraw, purpose)
		require.Equal(t, owner.PubKeyHash(), params.WithdrawPKH)
	}
}

func TestWithdrawRejectsStranger(t *testing.T) {
	owner, stranger := testKey(t, 1), testKey(t, 2)
	pools := []router.Pool{makePool(t, owner, 1, 1_000_000, 1000)}

	_, err := newExchange().Withdraw(WithdrawParams{Pools: pools, OwnerKey: stranger})
	require.ErrorIs(t, err, protoerr.ErrValue)

	_, err = newExchange().Withdraw(WithdrawParams{Pools: pools})
	require.ErrorIs(t, err, protoerr.ErrValue)

	_, err = newExchange().Withdraw(WithdrawParams{OwnerKey: owner})
	require.ErrorIs(t, err, protoerr.ErrValue)
}

func TestPoolsSnapshot(t *testing.T) {
	owner, trader := testKey(t, 1), testKey(t, 2)
	store := utxo.NewStore(storage.NewMemory())
	pools := []router.Pool{
		makePool(t, owner, 1, 1118498378, 1100),
		makePool(t, owner, 2, 500_000_000, 520),
	}
	for _, p := range pools {
		require.NoError(t, store.Put(PoolEntry(p)))
	}
	require.NoError(t, store.Put(&utxo.Entry{UTXO: coin(t, trader, 9, 1000, &types.TokenData{ID: testToken, Amount: 3}).UTXO, Kind: utxo.KindCoin}))

	loaded, err := LoadPools(store, testToken)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	trade, err := router.ConstructTradeBestRateForTargetDemand(testToken, types.NativeTokenID, big.NewInt(1_000_000), loaded, nil)
	require.NoError(t, err)
	res, err := newExchange().ExecuteTrade(TradeParams{
		Trade:                 trade,
		Funding:               []wallet.SpendableCoin{coin(t, trader, 1, 100_000, &types.TokenData{ID: testToken, Amount: 50})},
		DemandLockingBytecode: types.P2PKHLockingBytecode(trader.PubKeyHash()),
		Rules:                 changeTo(trader),
	})
	require.NoError(t, err)
	require.NoError(t, res.Record(store))

	after, err := LoadPools(store, testToken)
	require.NoError(t, err)
	require.Len(t, after, 2)
	for _, p := range res.Pools {
		ok, err := store.Has(p.UTXO.Outpoint)
		require.NoError(t, err)
		require.True(t, ok)
	}
	for _, e := range trade.Entries {
		ok, err := store.Has(e.Pool.UTXO.Outpoint)
		require.NoError(t, err)
		require.False(t, ok)
	}
}
