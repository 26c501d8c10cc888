package protoerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/covenantlab/pkg/types"
)

func TestKindNames(t *testing.T) {
	tests := []struct {
		kind Kind
		name string
	}{
		{KindValue, "ValueError"},
		{KindInsufficientFunds, "InsufficientFunds"},
		{KindInvalidProgramState, "InvalidProgramState"},
		{KindNotFound, "NotFoundError"},
		{KindNotImplemented, "NotImplemented"},
		{KindBurnToken, "BurnTokenException"},
		{KindBurnNFT, "BurnNFTException"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.name, tt.kind.String())

			data, err := json.Marshal(tt.kind)
			require.NoError(t, err)
			require.Equal(t, `"`+tt.name+`"`, string(data))

			var k Kind
			require.NoError(t, json.Unmarshal(data, &k))
			require.Equal(t, tt.kind, k)
		})
	}
	require.Len(t, kindNames, len(tests))
}

func TestKindUnknown(t *testing.T) {
	_, err := ParseKind("Exception")
	require.Error(t, err)

	var k Kind
	require.Error(t, json.Unmarshal([]byte(`"Exception"`), &k))

	_, err = json.Marshal(Kind(0))
	require.Error(t, err)
	require.Equal(t, "Kind(0)", Kind(0).String())
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("mint: %w", Valuef("amount %d too small", 3))
	require.ErrorIs(t, err, ErrValue)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Equal(t, KindValue, KindOf(err))
	require.Equal(t, Kind(0), KindOf(errors.New("plain")))
	require.Equal(t, "ValueError: amount 3 too small", errors.Unwrap(err).Error())
}

func TestInsufficientPayload(t *testing.T) {
	id := types.TokenID{0x01}
	err := Insufficient(id, big.NewInt(150), big.NewInt(100))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	require.Equal(t, id, perr.Funds.TokenID)
	require.Equal(t, int64(50), perr.Funds.Missing().Int64())

	data, err := json.Marshal(perr)
	require.NoError(t, err)
	var back Error
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, KindInsufficientFunds, back.Kind)
	require.Zero(t, back.Funds.Required.Cmp(big.NewInt(150)))
}

func TestBurnErrorsCarryToken(t *testing.T) {
	id := types.TokenID{0x02}
	err := BurnNFT(id, "agent nft would be destroyed")
	require.ErrorIs(t, err, ErrBurnNFT)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	require.Equal(t, id, *perr.Token)
	require.ErrorIs(t, BurnToken(id, "x"), ErrBurnToken)
}
