package compiler

import (
	"bytes"

	"github.com/Klingon-tech/covenantlab/internal/codec"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/tx"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// signaturePushSize is push(schnorr sig + sighash byte).
const signaturePushSize = 1 + 64 + 1

// pubKeyPushSize is push(compressed pubkey).
const pubKeyPushSize = 1 + 33

// Template builds the unlocking bytecode of one input.
type Template interface {
	UnlockingSize(data UnlockData) (int, error)
	Unlock(t *tx.Transaction, idx int, spent types.Output, data UnlockData) ([]byte, error)
}

func signInput(t *tx.Transaction, idx int, spent types.Output, key crypto.Signer) ([]byte, error) {
	h := t.SignatureHash(idx, spent, crypto.SigHashAllForkID)
	return crypto.SignTx(key, h, crypto.SigHashAllForkID)
}

func pushAll(items ...[]byte) []byte {
	var out []byte
	for _, it := range items {
		out = append(out, types.PushData(it)...)
	}
	return out
}

type p2pkhTemplate struct{}

func (p2pkhTemplate) UnlockingSize(data UnlockData) (int, error) {
	if data.Key == nil {
		return 0, protoerr.Valuef("p2pkh unlock needs a key")
	}
	return tx.P2PKHUnlockingSize, nil
}

func (p2pkhTemplate) Unlock(t *tx.Transaction, idx int, spent types.Output, data UnlockData) ([]byte, error) {
	if data.Key == nil {
		return nil, protoerr.Valuef("p2pkh unlock needs a key")
	}
	pub := data.Key.PublicKey()
	pkh, ok := types.PubKeyHashFromLockingBytecode(spent.LockingBytecode)
	if !ok || pkh != crypto.PubKeyHashFromPubKey(pub) {
		return nil, protoerr.Valuef("input %d: key does not match locking bytecode", idx)
	}
	sig, err := signInput(t, idx, spent, data.Key)
	if err != nil {
		return nil, err
	}
	return pushAll(sig, pub), nil
}

type poolTradeTemplate struct{}

func (poolTradeTemplate) UnlockingSize(data UnlockData) (int, error) {
	if _, ok := codec.ParsePoolRedeemScript(data.RedeemScript); !ok {
		return 0, protoerr.Valuef("not a pool redeem script")
	}
	return len(codec.PoolUnlockingBytecode(data.RedeemScript)), nil
}

func (poolTradeTemplate) Unlock(_ *tx.Transaction, idx int, spent types.Output, data UnlockData) ([]byte, error) {
	if !bytes.Equal(spent.LockingBytecode, codec.PoolLockingBytecode(data.RedeemScript)) {
		return nil, protoerr.Valuef("input %d: redeem script does not match pool", idx)
	}
	return codec.PoolUnlockingBytecode(data.RedeemScript), nil
}

type poolWithdrawTemplate struct{}

func (poolWithdrawTemplate) UnlockingSize(data UnlockData) (int, error) {
	if data.Key == nil {
		return 0, protoerr.Valuef("pool withdraw needs the owner key")
	}
	if _, ok := codec.ParsePoolRedeemScript(data.RedeemScript); !ok {
		return 0, protoerr.Valuef("not a pool redeem script")
	}
	return signaturePushSize + pubKeyPushSize + len(types.PushData(data.RedeemScript)), nil
}

func (poolWithdrawTemplate) Unlock(t *tx.Transaction, idx int, spent types.Output, data UnlockData) ([]byte, error) {
	params, ok := codec.ParsePoolRedeemScript(data.RedeemScript)
	if !ok || !bytes.Equal(spent.LockingBytecode, codec.PoolLockingBytecode(data.RedeemScript)) {
		return nil, protoerr.Valuef("input %d: redeem script does not match pool", idx)
	}
	if data.Key == nil {
		return nil, protoerr.Valuef("pool withdraw needs the owner key")
	}
	pub := data.Key.PublicKey()
	if crypto.PubKeyHashFromPubKey(pub) != params.WithdrawPKH {
		return nil, protoerr.Valuef("input %d: key is not the pool owner", idx)
	}
	sig, err := signInput(t, idx, spent, data.Key)
	if err != nil {
		return nil, err
	}
	return codec.PoolWithdrawUnlockingBytecode(sig, pub, data.RedeemScript), nil
}

// covenantTemplate unlocks a P2SH32 covenant by pushing the optional
// arguments, the function selector and the redeem script. With withKey set
// it prepends a signature and public key.
type covenantTemplate struct {
	withKey bool
}

func (c covenantTemplate) pushes(data UnlockData) [][]byte {
	items := append([][]byte{}, data.Args...)
	if len(data.Selector) > 0 {
		items = append(items, data.Selector)
	}
	return append(items, data.RedeemScript)
}

func (c covenantTemplate) UnlockingSize(data UnlockData) (int, error) {
	if len(data.RedeemScript) == 0 {
		return 0, protoerr.Valuef("covenant unlock needs a redeem script")
	}
	n := len(pushAll(c.pushes(data)...))
	if c.withKey {
		if data.Key == nil {
			return 0, protoerr.Valuef("covenant owner unlock needs a key")
		}
		n += signaturePushSize + pubKeyPushSize
	}
	return n, nil
}

func (c covenantTemplate) Unlock(t *tx.Transaction, idx int, spent types.Output, data UnlockData) ([]byte, error) {
	if len(data.RedeemScript) == 0 {
		return nil, protoerr.Valuef("covenant unlock needs a redeem script")
	}
	want := types.P2SH32LockingBytecode(crypto.Sha256d(data.RedeemScript))
	if !bytes.Equal(spent.LockingBytecode, want) {
		return nil, protoerr.Valuef("input %d: redeem script does not match covenant", idx)
	}
	body := pushAll(c.pushes(data)...)
	if !c.withKey {
		return body, nil
	}
	if data.Key == nil {
		return nil, protoerr.Valuef("covenant owner unlock needs a key")
	}
	sig, err := signInput(t, idx, spent, data.Key)
	if err != nil {
		return nil, err
	}
	return append(pushAll(sig, data.Key.PublicKey()), body...), nil
}
