package cli

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/covenantlab/internal/codec"
	"github.com/Klingon-tech/covenantlab/internal/utxo"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

var testToken = types.TokenID{0x7a, 0x7a}

func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--datadir", dataDir, "--log-level", "disabled"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writePools(t *testing.T, dir string) string {
	t.Helper()
	redeem, err := codec.BuildPoolRedeemScript(bytes.Repeat([]byte{0x07}, types.PubKeyHashSize))
	require.NoError(t, err)
	var entries []*utxo.Entry
	for i, r := range [][2]uint64{{10_000_000_000, 50_000}, {20_000_000_000, 100_000}} {
		entries = append(entries, &utxo.Entry{
			UTXO: types.UTXO{
				Outpoint: types.Outpoint{TxID: types.Hash{0xee, byte(i + 1)}},
				Output: types.Output{
					LockingBytecode: codec.PoolLockingBytecode(redeem),
					Amount:          r[0],
					Token:           &types.TokenData{ID: testToken, Amount: r[1]},
				},
			},
			Kind:         utxo.KindPool,
			RedeemScript: redeem,
		})
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	path := filepath.Join(dir, "pools.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	require.Contains(t, out, "covenantctl version "+Version)
}

func TestDecodeDelphi(t *testing.T) {
	out, err := run(t, t.TempDir(), "decode", "delphi", "8f3e44680000e8034cdc1100779e0000")
	require.NoError(t, err)

	var c codec.DelphiCommitment
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	require.Equal(t, uint32(1749302927), c.Timestamp)
	require.Equal(t, uint16(1000), c.UseFee)
	require.Equal(t, uint32(40567), c.Price)
}

func TestDecodeUnlock(t *testing.T) {
	redeem, err := codec.BuildPoolRedeemScript(bytes.Repeat([]byte{0x07}, types.PubKeyHashSize))
	require.NoError(t, err)

	out, err := run(t, t.TempDir(), "decode", "unlock", hex.EncodeToString(codec.PoolUnlockingBytecode(redeem)))
	require.NoError(t, err)
	require.Contains(t, out, `"purpose": "trade"`)

	_, err = run(t, t.TempDir(), "decode", "pool", "00")
	require.Error(t, err)
	_, err = run(t, t.TempDir(), "decode", "loan", "zz")
	require.Error(t, err)
}

func TestInterest(t *testing.T) {
	out, err := run(t, t.TempDir(), "interest",
		"--principal", "50000", "--rate-bp", "500",
		"--since", "1700000000", "--now", "1731536000")
	require.NoError(t, err)

	var res struct {
		Interest  json.Number `json:"interest"`
		TotalOwed json.Number `json:"total_owed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "2500", res.Interest.String())
	require.Equal(t, "52500", res.TotalOwed.String())
}

func TestPoolsImportListRoute(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "pools", "import", writePools(t, dir))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "imported 2 pools"))

	out, err = run(t, dir, "pools", "list", "--token", testToken.String())
	require.NoError(t, err)
	var rows []struct {
		Outpoint    string `json:"outpoint"`
		TokenAmount uint64 `json:"token_amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)

	// Another network sees an empty snapshot.
	out, err = run(t, dir, "--network", "chipnet", "pools", "list")
	require.NoError(t, err)
	require.JSONEq(t, "[]", out)

	out, err = run(t, dir, "route", "best", "--token", testToken.String(), "--sell", "native", "3000")
	require.NoError(t, err)
	var trade struct {
		Entries []json.RawMessage `json:"entries"`
		Summary struct {
			Demand json.Number `json:"demand"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &trade))
	require.Len(t, trade.Entries, 2)
	require.Equal(t, "3000", trade.Summary.Demand.String())

	out, err = run(t, dir, "quote", "--token", testToken.String(), "--sell", "token", "100")
	require.NoError(t, err)
	var quotes []struct {
		Pool string `json:"pool"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &quotes))
	require.Len(t, quotes, 2)
}

func TestRouteRejects(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "route", "best", "--token", testToken.String(), "3000")
	require.ErrorContains(t, err, "no pools stored")

	_, err = run(t, dir, "route", "best", "--token", "native", "3000")
	require.Error(t, err)

	_, err = run(t, dir, "route", "avg", "--token", testToken.String(), "--sell", "both", "1/2")
	require.Error(t, err)
}

func TestPoolsImportRejectsNonPool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"utxo":{"outpoint":{"txid":"`+strings.Repeat("00", 32)+`","index":0},"output":{"locking_bytecode":"51","amount":1000}},"kind":"pool","redeem_script":"51"}]`), 0o600))
	_, err := run(t, dir, "pools", "import", path)
	require.Error(t, err)
}
