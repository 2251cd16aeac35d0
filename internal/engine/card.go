// Package engine implements the bomb-card game rules.
//
// The package is a pure state machine: it owns the draw pile, discard pile,
// hands, turn order and the interrupt stack, and mutates them only through
// validated actions. It performs no I/O and holds no timers — the service
// layer drives timeouts by calling the corresponding engine transitions.
package engine

import "github.com/google/uuid"

// Kind enumerates the card types in play.
type Kind uint8

const (
	KindBomb Kind = iota
	KindDefuse
	KindSkip
	KindAttack
	KindShuffle
	KindSeeFuture
	KindCounter
	KindFavor
	KindCatBlue
	KindCatGreen
	KindCatOrange
	KindCatPink
	KindCatYellow

	numKinds
)

var kindNames = [numKinds]string{
	"bomb", "defuse", "skip", "attack", "shuffle", "see_future",
	"counter", "favor", "cat_blue", "cat_green", "cat_orange",
	"cat_pink", "cat_yellow",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if k >= numKinds {
		return "unknown"
	}
	return kindNames[k]
}

// IsCat reports whether the kind is one of the five cat variants.
func (k Kind) IsCat() bool { return k >= KindCatBlue && k <= KindCatYellow }

// catKinds lists the five cat variants in issue order.
var catKinds = [5]Kind{KindCatBlue, KindCatGreen, KindCatOrange, KindCatPink, KindCatYellow}

// Card is a single card instance. ID is unique for the lifetime of a game
// and Kind never changes after creation.
type Card struct {
	ID   uuid.UUID `json:"id"`
	Kind Kind      `json:"kind"`
}

func newCard(kind Kind) Card {
	return Card{ID: uuid.New(), Kind: kind}
}
