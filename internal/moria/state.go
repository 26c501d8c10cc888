package moria

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
)

// State is a position in the loan lifecycle.
type State uint8

const (
	StateNone State = iota
	StateMinted
	StateRefinanced
	StateCollateralAdjusted
	StateRedeemed
	StateRepaid
	StateLiquidated
	StateClosed
)

var stateNames = map[State]string{
	StateNone:               "none",
	StateMinted:             "minted",
	StateRefinanced:         "refinanced",
	StateCollateralAdjusted: "collateral-adjusted",
	StateRedeemed:           "redeemed",
	StateRepaid:             "repaid",
	StateLiquidated:         "liquidated",
	StateClosed:             "closed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Live reports whether a loan in state s still exists on chain.
func (s State) Live() bool {
	return s == StateMinted || s == StateRefinanced || s == StateCollateralAdjusted
}

// Event drives a state transition.
type Event uint8

const (
	EventMint Event = iota
	EventAddCollateral
	EventRefinance
	EventRedeem
	EventRepay
	EventLiquidate
	EventClose
)

var eventNames = map[Event]string{
	EventMint:          "mint",
	EventAddCollateral: "add-collateral",
	EventRefinance:     "refinance",
	EventRedeem:        "redeem",
	EventRepay:         "repay",
	EventLiquidate:     "liquidate",
	EventClose:         "close",
}

func (e Event) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}
	return fmt.Sprintf("event(%d)", uint8(e))
}

var liveTransitions = map[Event]State{
	EventAddCollateral: StateCollateralAdjusted,
	EventRefinance:     StateRefinanced,
	EventRedeem:        StateRedeemed,
	EventRepay:         StateRepaid,
	EventLiquidate:     StateLiquidated,
}

// Next returns the state reached from s on e.
func (s State) Next(e Event) (State, error) {
	switch {
	case s == StateNone && e == EventMint:
		return StateMinted, nil
	case s.Live():
		if next, ok := liveTransitions[e]; ok {
			return next, nil
		}
	case s == StateRedeemed || s == StateRepaid || s == StateLiquidated:
		if e == EventClose {
			return StateClosed, nil
		}
	}
	return s, protoerr.Valuef("loan in state %s cannot %s", s, e)
}

// path applies events in order and returns every state visited.
func path(s State, events ...Event) ([]State, error) {
	states := make([]State, 0, len(events))
	for _, e := range events {
		next, err := s.Next(e)
		if err != nil {
			return nil, err
		}
		states = append(states, next)
		s = next
	}
	return states, nil
}
