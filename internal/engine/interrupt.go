package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeclaredPlay is a card play whose effect is held back until its interrupt
// window resolves. The played cards are already in the discard pile — they
// stay there whether or not the play is cancelled.
type DeclaredPlay struct {
	Actor        uuid.UUID
	Kind         PlayKind
	CardIDs      []uuid.UUID
	TargetPlayer uuid.UUID // pair steal / favor target
	TargetCard   uuid.UUID // five-cat discard claim
}

// CounterEntry is one counter card played into the interrupt stack.
type CounterEntry struct {
	PlayerID uuid.UUID
	CardID   uuid.UUID
}

// Interrupt is the explicit interrupt-stack state: the deferred base play
// and the chain of counters declared against it. Resolution alternates —
// an odd chain cancels the base play, an even chain restores it.
type Interrupt struct {
	Active   bool
	Play     DeclaredPlay
	Counters []CounterEntry
}

// TopDeclarer returns the player whose declaration currently tops the stack.
func (in *Interrupt) TopDeclarer() uuid.UUID {
	if n := len(in.Counters); n > 0 {
		return in.Counters[n-1].PlayerID
	}
	return in.Play.Actor
}

// PlayCards declares a card play for the turn owner. The cards move to the
// discard pile immediately and the interrupt window opens; the effect is
// applied by ResolveInterrupt once the window closes. Validation failures
// leave the game untouched.
func (g *Game) PlayCards(playerID uuid.UUID, cardIDs []uuid.UUID, targetPlayer uuid.UUID, targetCard uuid.UUID) (*PlayedAction, error) {
	if g.Phase != PhaseNormal && g.Phase != PhaseDrawPending {
		return nil, fmt.Errorf("%w: cannot play cards in phase %s", ErrInvalidAction, g.Phase)
	}
	if g.CurrentPlayerID() != playerID {
		return nil, fmt.Errorf("%w: not your turn", ErrInvalidAction)
	}
	p := g.PlayerByID(playerID)

	cards, err := cardsFromHand(p.Hand, cardIDs)
	if err != nil {
		return nil, err
	}

	play := DeclaredPlay{Actor: playerID, CardIDs: cardIDs}
	switch len(cards) {
	case 1:
		switch cards[0].Kind {
		case KindSkip:
			play.Kind = PlaySkip
		case KindAttack:
			play.Kind = PlayAttack
		case KindShuffle:
			play.Kind = PlayShuffle
		case KindSeeFuture:
			play.Kind = PlaySeeFuture
		case KindFavor:
			play.Kind = PlayFavor
			if err := g.validateHandTarget(playerID, targetPlayer); err != nil {
				return nil, err
			}
			play.TargetPlayer = targetPlayer
		case KindCounter:
			return nil, fmt.Errorf("%w: a counter only answers a declared action", ErrInvalidAction)
		default:
			return nil, fmt.Errorf("%w: %s cannot be played alone", ErrInvalidAction, cards[0].Kind)
		}
	case 2:
		if !IsPair(cards) {
			return nil, fmt.Errorf("%w: not a playable pair", ErrInvalidAction)
		}
		if err := g.validateHandTarget(playerID, targetPlayer); err != nil {
			return nil, err
		}
		play.Kind = PlayPairSteal
		play.TargetPlayer = targetPlayer
	case 5:
		if !IsFiveDistinctCats(cards) {
			return nil, fmt.Errorf("%w: not five distinct cats", ErrInvalidAction)
		}
		if len(g.Discard) == 0 {
			return nil, fmt.Errorf("%w: discard pile is empty", ErrRuleViolation)
		}
		if findCard(g.Discard, targetCard) < 0 {
			return nil, fmt.Errorf("%w: claimed card not in discard pile", ErrInvalidAction)
		}
		play.Kind = PlayFiveCatClaim
		play.TargetCard = targetCard
	default:
		return nil, fmt.Errorf("%w: cannot play %d cards together", ErrInvalidAction, len(cards))
	}

	// Validated: commit the cards to the discard pile and open the window.
	for _, id := range cardIDs {
		card, _ := takeCard(&p.Hand, id)
		g.Discard = append(g.Discard, card)
	}
	g.Interrupt = Interrupt{Active: true, Play: play}
	g.Phase = PhaseCounterPending

	act := &PlayedAction{
		PlayerID:  playerID,
		Kind:      play.Kind,
		CardIDs:   cardIDs,
		TargetID:  targetPlayer,
		Timestamp: time.Now(),
	}
	g.LastPlayed = act
	return act, nil
}

// PlayCounter pushes a counter onto the open interrupt stack. Any alive,
// present player other than the current top declarer may counter — the
// original actor included, which is how a counter-on-a-counter restores the
// base play. The first counter card in hand is consumed.
func (g *Game) PlayCounter(playerID uuid.UUID) (*PlayedAction, error) {
	if g.Phase != PhaseCounterPending || !g.Interrupt.Active {
		return nil, fmt.Errorf("%w: no action to counter", ErrRaceRejected)
	}
	p := g.PlayerByID(playerID)
	if p == nil || !p.Alive {
		return nil, fmt.Errorf("%w: player not in game", ErrInvalidAction)
	}
	if p.Away {
		return nil, fmt.Errorf("%w: player is disconnected", ErrInvalidAction)
	}
	if g.Interrupt.TopDeclarer() == playerID {
		return nil, fmt.Errorf("%w: cannot counter your own declaration", ErrInvalidAction)
	}
	counter, ok := takeKind(&p.Hand, KindCounter)
	if !ok {
		return nil, fmt.Errorf("%w: no counter card in hand", ErrInvalidAction)
	}
	g.Discard = append(g.Discard, counter)
	g.Interrupt.Counters = append(g.Interrupt.Counters, CounterEntry{PlayerID: playerID, CardID: counter.ID})

	act := &PlayedAction{
		PlayerID:  playerID,
		Kind:      PlayCounterCard,
		CardIDs:   []uuid.UUID{counter.ID},
		Timestamp: time.Now(),
	}
	g.LastPlayed = act
	return act, nil
}

// InterruptResult describes how a closed window resolved.
type InterruptResult struct {
	Play      DeclaredPlay
	Counters  int
	Cancelled bool
	Fizzled   bool // effect stood but had nothing to act on

	TurnEnded bool
	NextOwed  int // forced draws handed to the next player by an attack

	Stolen     *Card // pair steal outcome, private to the actor
	StolenFrom uuid.UUID
	Claimed    *Card  // five-cat claim outcome, public
	Peeked     []Card // see-future reveal, private to the actor
}

// ResolveInterrupt closes the window and settles the interrupt stack: odd
// counter parity cancels the base play as if it were never declared, even
// parity applies its effect exactly once. Called when the window timer
// expires; until then no effect of the declared play is observable.
func (g *Game) ResolveInterrupt() (*InterruptResult, error) {
	if g.Phase != PhaseCounterPending || !g.Interrupt.Active {
		return nil, fmt.Errorf("%w: no interrupt window open", ErrInvalidAction)
	}
	in := g.Interrupt
	g.Interrupt = Interrupt{}

	res := &InterruptResult{Play: in.Play, Counters: len(in.Counters)}
	if len(in.Counters)%2 == 1 {
		res.Cancelled = true
		g.Phase = g.owedPhase()
		return res, nil
	}

	switch in.Play.Kind {
	case PlaySkip:
		// A skip cancels one owed draw, not an entire attack stack.
		if g.DrawsOwed > 1 {
			g.DrawsOwed--
			g.Phase = PhaseDrawPending
			res.NextOwed = g.DrawsOwed
		} else {
			res.TurnEnded = true
			g.endTurn()
		}

	case PlayAttack:
		// Attacks stack cumulatively: the next player inherits the actor's
		// remaining obligation plus two.
		owed := g.DrawsOwed + 2
		res.TurnEnded = true
		res.NextOwed = owed
		g.advanceTurn(owed)

	case PlayShuffle:
		Shuffle(g.Deck, g.rnd)
		g.Phase = g.owedPhase()

	case PlaySeeFuture:
		n := len(g.Deck)
		if n > 3 {
			n = 3
		}
		peek := make([]Card, 0, n)
		for i := 0; i < n; i++ {
			peek = append(peek, g.Deck[len(g.Deck)-1-i])
		}
		g.Pending = Pending{Type: PendingPeekAck, PlayerID: in.Play.Actor, Peeked: peek}
		g.Phase = PhasePeekPending
		res.Peeked = peek

	case PlayFavor:
		target := g.PlayerByID(in.Play.TargetPlayer)
		if target == nil || !target.Alive || len(target.Hand) == 0 {
			res.Fizzled = true
			g.Phase = g.owedPhase()
			break
		}
		g.Pending = Pending{Type: PendingFavorGive, PlayerID: in.Play.Actor, TargetID: in.Play.TargetPlayer}
		g.Phase = PhaseFavorPending

	case PlayPairSteal:
		target := g.PlayerByID(in.Play.TargetPlayer)
		if target == nil || !target.Alive || len(target.Hand) == 0 {
			res.Fizzled = true
			g.Phase = g.owedPhase()
			break
		}
		pick := target.Hand[g.rnd.Intn(len(target.Hand))]
		card, _ := takeCard(&target.Hand, pick.ID)
		actor := g.PlayerByID(in.Play.Actor)
		actor.Hand = append(actor.Hand, card)
		res.Stolen = &card
		res.StolenFrom = target.ID
		g.Phase = g.owedPhase()

	case PlayFiveCatClaim:
		idx := findCard(g.Discard, in.Play.TargetCard)
		if idx < 0 {
			res.Fizzled = true
			g.Phase = g.owedPhase()
			break
		}
		card := g.Discard[idx]
		g.Discard = append(g.Discard[:idx], g.Discard[idx+1:]...)
		actor := g.PlayerByID(in.Play.Actor)
		actor.Hand = append(actor.Hand, card)
		res.Claimed = &card
		g.Phase = g.owedPhase()

	default:
		return nil, fmt.Errorf("%w: unknown play kind %d", ErrInconsistent, in.Play.Kind)
	}
	return res, nil
}

// validateHandTarget checks a steal/favor target: seated, alive, not the
// actor, and holding at least one card at declaration time.
func (g *Game) validateHandTarget(actor, target uuid.UUID) error {
	if target == actor {
		return fmt.Errorf("%w: cannot target yourself", ErrInvalidAction)
	}
	t := g.PlayerByID(target)
	if t == nil || !t.Alive {
		return fmt.Errorf("%w: target not found", ErrInvalidAction)
	}
	if len(t.Hand) == 0 {
		return fmt.Errorf("%w: target has no cards", ErrRuleViolation)
	}
	return nil
}

// cardsFromHand resolves ids against a hand, requiring every id to be
// present and distinct.
func cardsFromHand(hand []Card, ids []uuid.UUID) ([]Card, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no cards selected", ErrInvalidAction)
	}
	cards := make([]Card, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate card selection", ErrInvalidAction)
		}
		seen[id] = true
		idx := findCard(hand, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: card not in hand", ErrInvalidAction)
		}
		cards = append(cards, hand[idx])
	}
	return cards, nil
}

func findCard(cards []Card, id uuid.UUID) int {
	for i, c := range cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}
