package market

import (
	"fmt"
	"strings"
)

// Role is one of the two seats at the table.
type Role uint8

const (
	RoleRetail Role = iota // wants the price up
	RoleHedge              // wants the price down
)

// Roles lists both roles in canonical order.
var Roles = [2]Role{RoleRetail, RoleHedge}

func (r Role) String() string {
	switch r {
	case RoleRetail:
		return "RETAIL"
	case RoleHedge:
		return "HEDGE"
	default:
		return "UNKNOWN"
	}
}

// Opponent returns the other role.
func (r Role) Opponent() Role {
	if r == RoleRetail {
		return RoleHedge
	}
	return RoleRetail
}

func (r Role) MarshalText() ([]byte, error) {
	if r > RoleHedge {
		return nil, fmt.Errorf("invalid role %d", r)
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRole accepts "RETAIL" or "HEDGE" in any case.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RETAIL":
		return RoleRetail, nil
	case "HEDGE":
		return RoleHedge, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Action is a move a player can submit in a round. HOLD is shared by both
// roles; the rest belong to exactly one.
type Action uint8

const (
	ActionBuy Action = iota
	ActionHold
	ActionSell
	ActionShort
	ActionCover
)

// Canonical action orders. Payoff matrices are indexed by position in these.
var (
	RetailActions = [3]Action{ActionBuy, ActionHold, ActionSell}
	HedgeActions  = [3]Action{ActionShort, ActionCover, ActionHold}
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionHold:
		return "HOLD"
	case ActionSell:
		return "SELL"
	case ActionShort:
		return "SHORT"
	case ActionCover:
		return "COVER"
	default:
		return "UNKNOWN"
	}
}

func (a Action) MarshalText() ([]byte, error) {
	if a > ActionCover {
		return nil, fmt.Errorf("invalid action %d", a)
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAction is case-insensitive.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return ActionBuy, nil
	case "HOLD":
		return ActionHold, nil
	case "SELL":
		return ActionSell, nil
	case "SHORT":
		return ActionShort, nil
	case "COVER":
		return ActionCover, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Impact is the raw price impact of an action before sentiment scaling.
func Impact(a Action) int {
	switch a {
	case ActionBuy, ActionCover:
		return 3
	case ActionSell, ActionShort:
		return -2
	default:
		return 0
	}
}

// ActionsFor returns the legal actions of a role in canonical order.
func ActionsFor(r Role) [3]Action {
	if r == RoleHedge {
		return HedgeActions
	}
	return RetailActions
}

// Legal reports whether role r may play a.
func Legal(r Role, a Action) bool {
	return IndexOf(r, a) >= 0
}

// IndexOf returns the canonical position of a within the role's actions, or
// -1 when the action is not legal for the role.
func IndexOf(r Role, a Action) int {
	for i, x := range ActionsFor(r) {
		if x == a {
			return i
		}
	}
	return -1
}

// Sentiment is the market mood. It scales every price impact.
type Sentiment uint8

const (
	SentimentBearish Sentiment = iota
	SentimentNeutral
	SentimentBullish
	SentimentManic
)

// Sentiments in canonical order; the Markov walk follows this order.
var Sentiments = [4]Sentiment{SentimentBearish, SentimentNeutral, SentimentBullish, SentimentManic}

func (s Sentiment) String() string {
	switch s {
	case SentimentBearish:
		return "BEARISH"
	case SentimentNeutral:
		return "NEUTRAL"
	case SentimentBullish:
		return "BULLISH"
	case SentimentManic:
		return "MANIC"
	default:
		return "UNKNOWN"
	}
}

// Multiplier returns the price impact multiplier for the sentiment.
func (s Sentiment) Multiplier() float64 {
	switch s {
	case SentimentBearish:
		return 0.7
	case SentimentBullish:
		return 1.5
	case SentimentManic:
		return 2.0
	default:
		return 1.0
	}
}

func (s Sentiment) MarshalText() ([]byte, error) {
	if s > SentimentManic {
		return nil, fmt.Errorf("invalid sentiment %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Sentiment) UnmarshalText(b []byte) error {
	v, err := ParseSentiment(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseSentiment(str string) (Sentiment, error) {
	switch strings.ToUpper(strings.TrimSpace(str)) {
	case "BEARISH":
		return SentimentBearish, nil
	case "NEUTRAL":
		return SentimentNeutral, nil
	case "BULLISH":
		return SentimentBullish, nil
	case "MANIC":
		return SentimentManic, nil
	}
	return 0, fmt.Errorf("unknown sentiment %q", str)
}
