// Package protoerr defines the closed set of error kinds produced by the
// covenant core, plus an explicit string table used for (de)serialization.
package protoerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Kind classifies a protocol error.
type Kind uint8

const (
	KindValue               Kind = iota + 1 // Malformed or out-of-range input.
	KindInsufficientFunds                   // Funding shortfall, recoverable.
	KindInvalidProgramState                 // Internal invariant violated.
	KindNotFound                            // Referenced script or compiler id missing.
	KindNotImplemented                      // Unsupported coin or rule variant.
	KindBurnToken                           // Caller-authorized token discard.
	KindBurnNFT                             // Caller-authorized NFT discard.
)

// kindNames is the serialization table. Keep it in sync with the constants.
var kindNames = map[Kind]string{
	KindValue:               "ValueError",
	KindInsufficientFunds:   "InsufficientFunds",
	KindInvalidProgramState: "InvalidProgramState",
	KindNotFound:            "NotFoundError",
	KindNotImplemented:      "NotImplemented",
	KindBurnToken:           "BurnTokenException",
	KindBurnNFT:             "BurnNFTException",
}

var namesToKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// String returns the wire name of the kind.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind maps a wire name back to its kind.
func ParseKind(name string) (Kind, error) {
	k, ok := namesToKind[name]
	if !ok {
		return 0, fmt.Errorf("unknown error kind %q", name)
	}
	return k, nil
}

// MarshalJSON encodes the kind as its wire name.
func (k Kind) MarshalJSON() ([]byte, error) {
	n, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown error kind %d", uint8(k))
	}
	return json.Marshal(n)
}

// UnmarshalJSON decodes a wire name into a kind.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Sentinels for errors.Is matching on kind alone.
var (
	ErrValue               = &Error{Kind: KindValue}
	ErrInsufficientFunds   = &Error{Kind: KindInsufficientFunds}
	ErrInvalidProgramState = &Error{Kind: KindInvalidProgramState}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrNotImplemented      = &Error{Kind: KindNotImplemented}
	ErrBurnToken           = &Error{Kind: KindBurnToken}
	ErrBurnNFT             = &Error{Kind: KindBurnNFT}
)

// Error is a protocol error carrying its kind and an optional payload.
type Error struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Funds   *Shortfall     `json:"funds,omitempty"`
	Token   *types.TokenID `json:"token,omitempty"`
}

// Shortfall is the payload of an InsufficientFunds error.
type Shortfall struct {
	TokenID   types.TokenID `json:"token_id"`
	Required  *big.Int      `json:"required"`
	Available *big.Int      `json:"available"`
}

// Missing returns Required - Available.
func (s *Shortfall) Missing() *big.Int {
	return new(big.Int).Sub(s.Required, s.Available)
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// Is matches any *Error of the same kind, so the package sentinels work
// with errors.Is regardless of message or payload.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Valuef builds a ValueError.
func Valuef(format string, args ...any) error {
	return &Error{Kind: KindValue, Message: fmt.Sprintf(format, args...)}
}

// InvalidStatef builds an InvalidProgramState error.
func InvalidStatef(format string, args ...any) error {
	return &Error{Kind: KindInvalidProgramState, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NotFoundError.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NotImplementedf builds a NotImplemented error.
func NotImplementedf(format string, args ...any) error {
	return &Error{Kind: KindNotImplemented, Message: fmt.Sprintf(format, args...)}
}

// Insufficient builds an InsufficientFunds error for the given token.
func Insufficient(id types.TokenID, required, available *big.Int) error {
	s := &Shortfall{
		TokenID:   id,
		Required:  new(big.Int).Set(required),
		Available: new(big.Int).Set(available),
	}
	return &Error{
		Kind:    KindInsufficientFunds,
		Message: fmt.Sprintf("%s: required %s, available %s", id, required, available),
		Funds:   s,
	}
}

// BurnNFT builds a BurnNFTException for an NFT of the given category.
func BurnNFT(id types.TokenID, format string, args ...any) error {
	tid := id
	return &Error{Kind: KindBurnNFT, Message: fmt.Sprintf(format, args...), Token: &tid}
}

// BurnToken builds a BurnTokenException for the given token category.
func BurnToken(id types.TokenID, format string, args ...any) error {
	tid := id
	return &Error{Kind: KindBurnToken, Message: fmt.Sprintf(format, args...), Token: &tid}
}

// KindOf returns the kind of err, or 0 if err is not a protocol error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
