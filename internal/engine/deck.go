package engine

import "fmt"

const (
	// MinPlayers and MaxPlayers bound the supported seat counts.
	MinPlayers = 2
	MaxPlayers = 10

	// DealtHandSize is the number of non-defuse cards dealt to each player.
	// Every player additionally receives one reserved defuse, so starting
	// hands hold DealtHandSize+1 cards.
	DealtHandSize = 7
)

// Rand is a seedable xorshift64 generator, kept deliberately tiny so game
// state stays a plain value and test scenarios are reproducible from a seed.
type Rand struct{ s uint64 }

// NewRand returns a generator seeded with seed. A zero seed is remapped
// because xorshift cannot leave the zero state.
func NewRand(seed uint64) *Rand {
	if seed == 0 {
		seed = 1
	}
	return &Rand{s: seed}
}

// Uint64 advances the generator.
func (r *Rand) Uint64() uint64 {
	x := r.s
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	r.s = x
	return x
}

// Intn returns a value in [0, n). n must be positive.
func (r *Rand) Intn(n int) int {
	return int(r.Uint64() % uint64(n))
}

// Shuffle permutes cards in place with a Fisher-Yates walk.
func Shuffle(cards []Card, r *Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// composition is the per-kind card count for one player-count bracket.
// Defuses and bombs are excluded: defuse count is derived from the player
// count and bombs are inserted after dealing.
type composition struct {
	Skip, Attack, Shuffle, SeeFuture, Counter, Favor, PerCat int
}

// compositionFor returns the bracketed composition. Deck sizing guarantees
// dealing can never run short: the smallest bracket leaves 46 cards for at
// most 21 dealt ones.
func compositionFor(playerCount int) composition {
	switch {
	case playerCount <= 3:
		return composition{Skip: 4, Attack: 4, Shuffle: 4, SeeFuture: 5, Counter: 5, Favor: 4, PerCat: 4}
	case playerCount <= 7:
		return composition{Skip: 6, Attack: 6, Shuffle: 6, SeeFuture: 7, Counter: 7, Favor: 6, PerCat: 5}
	default:
		return composition{Skip: 8, Attack: 8, Shuffle: 8, SeeFuture: 9, Counter: 9, Favor: 8, PerCat: 7}
	}
}

// kindCount returns the configured quantity of a single kind for playerCount,
// defuses and bombs included. Exposed for the composition property tests.
func kindCount(playerCount int, kind Kind) int {
	c := compositionFor(playerCount)
	switch kind {
	case KindBomb:
		return playerCount - 1
	case KindDefuse:
		return playerCount + 1
	case KindSkip:
		return c.Skip
	case KindAttack:
		return c.Attack
	case KindShuffle:
		return c.Shuffle
	case KindSeeFuture:
		return c.SeeFuture
	case KindCounter:
		return c.Counter
	case KindFavor:
		return c.Favor
	default:
		if kind.IsCat() {
			return c.PerCat
		}
		return 0
	}
}

// BuildDeck assembles the shuffled pre-deal draw pile for playerCount seats.
// It contains every configured card except bombs (inserted after dealing)
// and the playerCount reserved defuses (handed out by Deal); the one spare
// defuse is shuffled in. Top of deck is the end of the slice.
func BuildDeck(playerCount int, r *Rand) ([]Card, error) {
	if playerCount < MinPlayers || playerCount > MaxPlayers {
		return nil, fmt.Errorf("%w: player count %d out of range", ErrInvalidAction, playerCount)
	}
	c := compositionFor(playerCount)

	deck := make([]Card, 0, 64)
	add := func(kind Kind, n int) {
		for i := 0; i < n; i++ {
			deck = append(deck, newCard(kind))
		}
	}
	add(KindSkip, c.Skip)
	add(KindAttack, c.Attack)
	add(KindShuffle, c.Shuffle)
	add(KindSeeFuture, c.SeeFuture)
	add(KindCounter, c.Counter)
	add(KindFavor, c.Favor)
	for _, cat := range catKinds {
		add(cat, c.PerCat)
	}
	// Spare defuses beyond the per-player reserve go into the pile.
	add(KindDefuse, 1)

	Shuffle(deck, r)
	return deck, nil
}

// Deal hands out starting hands: one freshly reserved defuse plus
// DealtHandSize cards drawn from the top of deck. It returns the hands in
// seat order and the remaining deck. Deck sizing makes a shortfall
// unreachable, so running short is treated as corruption rather than a
// handled condition.
func Deal(deck []Card, playerCount int) ([][]Card, []Card, error) {
	need := playerCount * DealtHandSize
	if len(deck) < need {
		return nil, nil, fmt.Errorf("%w: deck of %d cannot deal %d", ErrInconsistent, len(deck), need)
	}
	hands := make([][]Card, playerCount)
	for p := 0; p < playerCount; p++ {
		hand := make([]Card, 0, DealtHandSize+1)
		hand = append(hand, newCard(KindDefuse))
		hands[p] = hand
	}
	// Round-robin from the top, one card per player per pass.
	for c := 0; c < DealtHandSize; c++ {
		for p := 0; p < playerCount; p++ {
			top := len(deck) - 1
			hands[p] = append(hands[p], deck[top])
			deck = deck[:top]
		}
	}
	return hands, deck, nil
}

// InsertBombs adds playerCount-1 bombs to an already-dealt deck and
// reshuffles. Called exactly once, strictly after Deal.
func InsertBombs(deck []Card, playerCount int, r *Rand) []Card {
	for i := 0; i < playerCount-1; i++ {
		deck = append(deck, newCard(KindBomb))
	}
	Shuffle(deck, r)
	return deck
}
