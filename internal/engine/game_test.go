package engine

import (
	"testing"

	"github.com/google/uuid"
)

// newTestGame builds a seeded game with n fresh player ids.
func newTestGame(t *testing.T, n int) *Game {
	t.Helper()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	g, err := NewGame(42, ids)
	if err != nil {
		t.Fatalf("NewGame(%d): %v", n, err)
	}
	return g
}

// giveKind mints a card of kind into the player's hand, keeping the
// conservation baseline in step.
func giveKind(g *Game, p *PlayerState, kind Kind) Card {
	c := newCard(kind)
	p.Hand = append(p.Hand, c)
	g.totalCards++
	return c
}

// stripKind moves every card of kind from the hand to the discard pile.
func stripKind(g *Game, p *PlayerState, kind Kind) {
	kept := p.Hand[:0]
	for _, c := range p.Hand {
		if c.Kind == kind {
			g.Discard = append(g.Discard, c)
		} else {
			kept = append(kept, c)
		}
	}
	p.Hand = kept
}

// dumpHand discards the player's entire hand.
func dumpHand(g *Game, p *PlayerState) {
	g.Discard = append(g.Discard, p.Hand...)
	p.Hand = nil
}

// rigTop moves a card of the wanted kind (or, for wantBomb=false, any
// non-bomb) to the top of the deck.
func rigTop(t *testing.T, g *Game, want func(Card) bool) {
	t.Helper()
	top := len(g.Deck) - 1
	for i := top; i >= 0; i-- {
		if want(g.Deck[i]) {
			g.Deck[i], g.Deck[top] = g.Deck[top], g.Deck[i]
			return
		}
	}
	t.Fatal("no matching card in deck to rig")
}

func rigTopNonBomb(t *testing.T, g *Game) {
	rigTop(t, g, func(c Card) bool { return c.Kind != KindBomb })
}

func rigTopBomb(t *testing.T, g *Game) {
	rigTop(t, g, func(c Card) bool { return c.Kind == KindBomb })
}

// playAndResolve declares a play and immediately closes the counter window.
func playAndResolve(t *testing.T, g *Game, playerID uuid.UUID, cardIDs []uuid.UUID, targetPlayer, targetCard uuid.UUID) *InterruptResult {
	t.Helper()
	if _, err := g.PlayCards(playerID, cardIDs, targetPlayer, targetCard); err != nil {
		t.Fatalf("PlayCards: %v", err)
	}
	res, err := g.ResolveInterrupt()
	if err != nil {
		t.Fatalf("ResolveInterrupt: %v", err)
	}
	return res
}

func requireConservation(t *testing.T, g *Game) {
	t.Helper()
	if err := g.CheckConservation(); err != nil {
		t.Fatalf("conservation violated: %v", err)
	}
}

// ---------------------------------------------------------------------------

func TestNewGameSetup(t *testing.T) {
	g := newTestGame(t, 4)

	if g.Phase != PhaseNormal || g.TurnID != 1 || g.Current != 0 {
		t.Errorf("fresh game: phase=%s turn=%d current=%d", g.Phase, g.TurnID, g.Current)
	}
	for i, p := range g.Players {
		if len(p.Hand) != DealtHandSize+1 {
			t.Errorf("seat %d: hand size %d, want %d", i, len(p.Hand), DealtHandSize+1)
		}
		if !p.Alive {
			t.Errorf("seat %d: not alive", i)
		}
	}
	bombs := 0
	for _, c := range g.Deck {
		if c.Kind == KindBomb {
			bombs++
		}
	}
	if bombs != 3 {
		t.Errorf("deck bombs = %d, want 3", bombs)
	}
	requireConservation(t, g)
}

func TestNewGameRejectsBadSeats(t *testing.T) {
	if _, err := NewGame(1, []uuid.UUID{uuid.New()}); err == nil {
		t.Error("single player accepted")
	}
	dup := uuid.New()
	if _, err := NewGame(1, []uuid.UUID{dup, dup}); err == nil {
		t.Error("duplicate player id accepted")
	}
	if _, err := NewGame(1, []uuid.UUID{uuid.New(), uuid.Nil}); err == nil {
		t.Error("nil player id accepted")
	}
}

func TestSameSeedSameDeck(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	a, err := NewGame(77, ids)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewGame(77, ids)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Deck) != len(b.Deck) {
		t.Fatalf("deck sizes differ: %d vs %d", len(a.Deck), len(b.Deck))
	}
	for i := range a.Deck {
		if a.Deck[i].Kind != b.Deck[i].Kind {
			t.Fatalf("deck diverges at %d: %s vs %s", i, a.Deck[i].Kind, b.Deck[i].Kind)
		}
	}
}

func TestDrawEndsTurn(t *testing.T) {
	g := newTestGame(t, 3)
	p0 := g.Players[0]
	handBefore := len(p0.Hand)
	rigTopNonBomb(t, g)

	res, err := g.Draw(p0.ID)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if !res.TurnEnded || res.Bomb {
		t.Errorf("draw result: %+v", res)
	}
	if len(p0.Hand) != handBefore+1 {
		t.Errorf("hand size %d, want %d", len(p0.Hand), handBefore+1)
	}
	if g.Current != 1 || g.TurnID != 2 {
		t.Errorf("after draw: current=%d turn=%d", g.Current, g.TurnID)
	}
	requireConservation(t, g)
}

func TestDrawOutOfTurnRejected(t *testing.T) {
	g := newTestGame(t, 3)
	if _, err := g.Draw(g.Players[1].ID); err == nil {
		t.Error("out-of-turn draw accepted")
	}
}

func TestAttackStacksCumulatively(t *testing.T) {
	g := newTestGame(t, 3)
	p0, p1 := g.Players[0], g.Players[1]

	atk := giveKind(g, p0, KindAttack)
	res := playAndResolve(t, g, p0.ID, []uuid.UUID{atk.ID}, uuid.Nil, uuid.Nil)
	if !res.TurnEnded || res.NextOwed != 2 {
		t.Fatalf("first attack: turnEnded=%v nextOwed=%d", res.TurnEnded, res.NextOwed)
	}
	if g.CurrentPlayerID() != p1.ID || g.DrawsOwed != 2 || g.Phase != PhaseDrawPending {
		t.Fatalf("after first attack: current=%s owed=%d phase=%s", g.CurrentPlayerID(), g.DrawsOwed, g.Phase)
	}

	// Attacking again before drawing hands the remaining obligation plus
	// two to the next player.
	atk2 := giveKind(g, p1, KindAttack)
	res = playAndResolve(t, g, p1.ID, []uuid.UUID{atk2.ID}, uuid.Nil, uuid.Nil)
	if res.NextOwed != 4 || g.DrawsOwed != 4 {
		t.Fatalf("second attack: nextOwed=%d owed=%d, want 4", res.NextOwed, g.DrawsOwed)
	}
	if g.CurrentPlayerID() != g.Players[2].ID {
		t.Errorf("turn did not pass to seat 2")
	}
	requireConservation(t, g)
}

func TestForcedDrawsCountDown(t *testing.T) {
	g := newTestGame(t, 3)
	p0, p1 := g.Players[0], g.Players[1]

	atk := giveKind(g, p0, KindAttack)
	playAndResolve(t, g, p0.ID, []uuid.UUID{atk.ID}, uuid.Nil, uuid.Nil)

	rigTopNonBomb(t, g)
	res, err := g.Draw(p1.ID)
	if err != nil {
		t.Fatalf("first owed draw: %v", err)
	}
	if res.TurnEnded || res.DrawsOwedLeft != 1 || g.Phase != PhaseDrawPending {
		t.Fatalf("after first owed draw: %+v phase=%s", res, g.Phase)
	}
	if g.CurrentPlayerID() != p1.ID {
		t.Fatal("turn moved away with draws still owed")
	}

	rigTopNonBomb(t, g)
	res, err = g.Draw(p1.ID)
	if err != nil {
		t.Fatalf("second owed draw: %v", err)
	}
	if !res.TurnEnded || res.DrawsOwedLeft != 0 {
		t.Fatalf("after second owed draw: %+v", res)
	}
	if g.CurrentPlayerID() != g.Players[2].ID || g.DrawsOwed != 0 {
		t.Errorf("turn should pass cleanly: current=%s owed=%d", g.CurrentPlayerID(), g.DrawsOwed)
	}
}

func TestSkipUnderAttackCancelsOneDraw(t *testing.T) {
	g := newTestGame(t, 3)
	p0, p1 := g.Players[0], g.Players[1]

	atk := giveKind(g, p0, KindAttack)
	playAndResolve(t, g, p0.ID, []uuid.UUID{atk.ID}, uuid.Nil, uuid.Nil)

	skip := giveKind(g, p1, KindSkip)
	res := playAndResolve(t, g, p1.ID, []uuid.UUID{skip.ID}, uuid.Nil, uuid.Nil)
	if res.TurnEnded || g.DrawsOwed != 1 || g.CurrentPlayerID() != p1.ID {
		t.Fatalf("skip with 2 owed: turnEnded=%v owed=%d current=%s", res.TurnEnded, g.DrawsOwed, g.CurrentPlayerID())
	}

	// With one owed left the skip ends the turn outright.
	skip2 := giveKind(g, p1, KindSkip)
	res = playAndResolve(t, g, p1.ID, []uuid.UUID{skip2.ID}, uuid.Nil, uuid.Nil)
	if !res.TurnEnded || g.CurrentPlayerID() != g.Players[2].ID || g.DrawsOwed != 0 {
		t.Fatalf("second skip: turnEnded=%v current=%s owed=%d", res.TurnEnded, g.CurrentPlayerID(), g.DrawsOwed)
	}
}

func TestCounterCancelsAttack(t *testing.T) {
	g := newTestGame(t, 3)
	p0, p1 := g.Players[0], g.Players[1]

	atk := giveKind(g, p0, KindAttack)
	ctr := giveKind(g, p1, KindCounter)
	if _, err := g.PlayCards(p0.ID, []uuid.UUID{atk.ID}, uuid.Nil, uuid.Nil); err != nil {
		t.Fatalf("attack: %v", err)
	}
	if g.Phase != PhaseCounterPending {
		t.Fatalf("phase after declaration: %s", g.Phase)
	}
	if _, err := g.PlayCounter(p1.ID); err != nil {
		t.Fatalf("counter: %v", err)
	}

	res, err := g.ResolveInterrupt()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Cancelled || res.Counters != 1 {
		t.Fatalf("resolution: %+v", res)
	}
	// Obligation restored: still the attacker's normal turn.
	if g.CurrentPlayerID() != p0.ID || g.DrawsOwed != 0 || g.Phase != PhaseNormal {
		t.Errorf("after cancel: current=%s owed=%d phase=%s", g.CurrentPlayerID(), g.DrawsOwed, g.Phase)
	}
	// Both cards are in the discard pile.
	found := map[uuid.UUID]bool{}
	for _, c := range g.Discard {
		found[c.ID] = true
	}
	if !found[atk.ID] || !found[ctr.ID] {
		t.Error("attack and counter not both in discard")
	}
	requireConservation(t, g)
}

func TestCounterChainEvenParityApplies(t *testing.T) {
	g := newTestGame(t, 3)
	p0, p1 := g.Players[0], g.Players[1]

	atk := giveKind(g, p0, KindAttack)
	giveKind(g, p1, KindCounter)
	giveKind(g, p0, KindCounter)

	if _, err := g.PlayCards(p0.ID, []uuid.UUID{atk.ID}, uuid.Nil, uuid.Nil); err != nil {
		t.Fatal(err)
	}
	if _, err := g.PlayCounter(p1.ID); err != nil {
		t.Fatal(err)
	}
	// The original declarer counters the counter.
	if _, err := g.PlayCounter(p0.ID); err != nil {
		t.Fatal(err)
	}

	res, err := g.ResolveInterrupt()
	if err != nil {
		t.Fatal(err)
	}
	if res.Cancelled || res.Counters != 2 {
		t.Fatalf("even chain: %+v", res)
	}
	if g.CurrentPlayerID() != p1.ID || g.DrawsOwed != 2 {
		t.Errorf("attack should apply: current=%s owed=%d", g.CurrentPlayerID(), g.DrawsOwed)
	}
}

func TestCounterRejections(t *testing.T) {
	g := newTestGame(t, 3)
	p0, p1 := g.Players[0], g.Players[1]

	// No window open: the race is already lost.
	giveKind(g, p1, KindCounter)
	if _, err := g.PlayCounter(p1.ID); err == nil {
		t.Error("counter without open window accepted")
	}

	atk := giveKind(g, p0, KindAttack)
	giveKind(g, p0, KindCounter)
	if _, err := g.PlayCards(p0.ID, []uuid.UUID{atk.ID}, uuid.Nil, uuid.Nil); err != nil {
		t.Fatal(err)
	}
	// The top declarer cannot counter their own declaration.
	if _, err := g.PlayCounter(p0.ID); err == nil {
		t.Error("self-counter accepted")
	}
	// A seat without a counter card cannot counter.
	stripKind(g, g.Players[2], KindCounter)
	if _, err := g.PlayCounter(g.Players[2].ID); err == nil {
		t.Error("counter without the card accepted")
	}
}

func TestCounterAloneNotPlayable(t *testing.T) {
	g := newTestGame(t, 2)
	p0 := g.Players[0]
	ctr := giveKind(g, p0, KindCounter)
	if _, err := g.PlayCards(p0.ID, []uuid.UUID{ctr.ID}, uuid.Nil, uuid.Nil); err == nil {
		t.Error("standalone counter accepted as a declaration")
	}
}

func TestDefuseFlow(t *testing.T) {
	g := newTestGame(t, 3)
	p0, p1 := g.Players[0], g.Players[1]

	rigTopBomb(t, g)
	deckBefore := len(g.Deck)
	res, err := g.Draw(p0.ID)
	if err != nil {
		t.Fatalf("bomb draw: %v", err)
	}
	if !res.Bomb || !res.DefusePending || res.Eliminated {
		t.Fatalf("bomb draw result: %+v", res)
	}
	if g.Phase != PhaseDefusePending || g.Pending.Type != PendingDefuseInsert || g.Pending.Bomb == nil {
		t.Fatalf("pending state: phase=%s pending=%+v", g.Phase, g.Pending)
	}
	if len(g.Deck) != deckBefore-1 {
		t.Errorf("bomb should be held out of the deck")
	}
	requireConservation(t, g)

	// Reinserting on top means the next player draws it straight back.
	defusesBefore := 0
	for _, c := range p0.Hand {
		if c.Kind == KindDefuse {
			defusesBefore++
		}
	}
	if _, err := g.DefuseInsert(p0.ID, len(g.Deck)); err != nil {
		t.Fatalf("DefuseInsert: %v", err)
	}
	defusesAfter := 0
	for _, c := range p0.Hand {
		if c.Kind == KindDefuse {
			defusesAfter++
		}
	}
	if defusesAfter != defusesBefore-1 {
		t.Errorf("defuses %d -> %d, want exactly one consumed", defusesBefore, defusesAfter)
	}
	if !p0.Alive || g.IsOver() {
		t.Error("defuse must not eliminate or end the game")
	}
	if g.CurrentPlayerID() != p1.ID {
		t.Error("defuse should end the turn")
	}

	res, err = g.Draw(p1.ID)
	if err != nil {
		t.Fatalf("follow-up draw: %v", err)
	}
	if !res.Bomb {
		t.Error("bomb reinserted on top was not drawn next")
	}
	requireConservation(t, g)
}

func TestDefuseInsertBottom(t *testing.T) {
	g := newTestGame(t, 2)
	p0 := g.Players[0]
	rigTopBomb(t, g)
	if _, err := g.Draw(p0.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := g.DefuseInsert(p0.ID, 0); err != nil {
		t.Fatal(err)
	}
	if g.Deck[0].Kind != KindBomb {
		t.Errorf("bottom card is %s, want bomb", g.Deck[0].Kind)
	}
}

func TestBombWithoutDefuseEliminates(t *testing.T) {
	g := newTestGame(t, 3)
	p0 := g.Players[0]
	stripKind(g, p0, KindDefuse)
	handIDs := make([]uuid.UUID, 0, len(p0.Hand))
	for _, c := range p0.Hand {
		handIDs = append(handIDs, c.ID)
	}
	rigTopBomb(t, g)

	res, err := g.Draw(p0.ID)
	if err != nil {
		t.Fatalf("bomb draw: %v", err)
	}
	if !res.Eliminated || !res.TurnEnded {
		t.Fatalf("result: %+v", res)
	}
	if p0.Alive || len(p0.Hand) != 0 {
		t.Error("drawer should be eliminated with an empty hand")
	}
	if g.DestroyedBombs != 1 {
		t.Errorf("DestroyedBombs = %d, want 1", g.DestroyedBombs)
	}
	if g.IsOver() {
		t.Error("game over with two players still alive")
	}
	if g.CurrentPlayerID() != g.Players[1].ID {
		t.Error("turn should pass to the next alive seat")
	}
	// The dead hand went to the discard pile.
	inDiscard := map[uuid.UUID]bool{}
	for _, c := range g.Discard {
		inDiscard[c.ID] = true
	}
	for _, id := range handIDs {
		if !inDiscard[id] {
			t.Errorf("card %s from the dead hand is not in discard", id)
		}
	}
	requireConservation(t, g)
}

func TestLastAliveWins(t *testing.T) {
	g := newTestGame(t, 2)
	p0, p1 := g.Players[0], g.Players[1]
	stripKind(g, p0, KindDefuse)
	rigTopBomb(t, g)

	if _, err := g.Draw(p0.ID); err != nil {
		t.Fatal(err)
	}
	if !g.IsOver() || g.Winner != p1.ID {
		t.Errorf("over=%v winner=%s, want winner %s", g.IsOver(), g.Winner, p1.ID)
	}
	if g.CurrentPlayerID() != uuid.Nil {
		t.Error("finished game still reports a turn owner")
	}
}

func TestFavorFlow(t *testing.T) {
	g := newTestGame(t, 3)
	p0, p1 := g.Players[0], g.Players[1]

	fav := giveKind(g, p0, KindFavor)
	res := playAndResolve(t, g, p0.ID, []uuid.UUID{fav.ID}, p1.ID, uuid.Nil)
	if res.Cancelled || res.Fizzled {
		t.Fatalf("favor resolution: %+v", res)
	}
	if g.Phase != PhaseFavorPending || g.Pending.TargetID != p1.ID {
		t.Fatalf("pending: phase=%s %+v", g.Phase, g.Pending)
	}

	// Only the asked player can give.
	if _, err := g.GiveCard(g.Players[2].ID, g.Players[2].Hand[0].ID); err == nil {
		t.Error("give accepted from the wrong player")
	}

	chosen := p1.Hand[0]
	actorBefore := len(p0.Hand)
	card, err := g.GiveCard(p1.ID, chosen.ID)
	if err != nil {
		t.Fatalf("GiveCard: %v", err)
	}
	if card.ID != chosen.ID || len(p0.Hand) != actorBefore+1 {
		t.Error("chosen card did not transfer to the actor")
	}
	// Actor keeps the turn after the favor resolves.
	if g.CurrentPlayerID() != p0.ID || g.Phase != PhaseNormal {
		t.Errorf("after favor: current=%s phase=%s", g.CurrentPlayerID(), g.Phase)
	}
	requireConservation(t, g)
}

func TestFavorAgainstEmptyHandFizzles(t *testing.T) {
	g := newTestGame(t, 3)
	p0, p1 := g.Players[0], g.Players[1]

	// Empty at declaration time is a rule violation.
	fav := giveKind(g, p0, KindFavor)
	saved := p1.Hand
	p1.Hand = nil
	if _, err := g.PlayCards(p0.ID, []uuid.UUID{fav.ID}, p1.ID, uuid.Nil); err == nil {
		t.Error("favor against empty hand accepted")
	}
	p1.Hand = saved

	// Emptied between declaration and resolution fizzles instead.
	if _, err := g.PlayCards(p0.ID, []uuid.UUID{fav.ID}, p1.ID, uuid.Nil); err != nil {
		t.Fatal(err)
	}
	dumpHand(g, p1)
	res, err := g.ResolveInterrupt()
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fizzled || g.Phase != PhaseNormal {
		t.Errorf("fizzled=%v phase=%s", res.Fizzled, g.Phase)
	}
	requireConservation(t, g)
}

func TestFavorSelfTargetRejected(t *testing.T) {
	g := newTestGame(t, 2)
	p0 := g.Players[0]
	fav := giveKind(g, p0, KindFavor)
	if _, err := g.PlayCards(p0.ID, []uuid.UUID{fav.ID}, p0.ID, uuid.Nil); err == nil {
		t.Error("self-targeted favor accepted")
	}
}

func TestPairSteal(t *testing.T) {
	g := newTestGame(t, 3)
	p0, p1 := g.Players[0], g.Players[1]

	c1 := giveKind(g, p0, KindCatBlue)
	c2 := giveKind(g, p0, KindCatBlue)
	targetBefore := len(p1.Hand)
	actorBefore := len(p0.Hand)

	res := playAndResolve(t, g, p0.ID, []uuid.UUID{c1.ID, c2.ID}, p1.ID, uuid.Nil)
	if res.Stolen == nil || res.StolenFrom != p1.ID {
		t.Fatalf("steal result: %+v", res)
	}
	// Two cards spent, one gained.
	if len(p0.Hand) != actorBefore-1 {
		t.Errorf("actor hand %d, want %d", len(p0.Hand), actorBefore-1)
	}
	if len(p1.Hand) != targetBefore-1 {
		t.Errorf("target hand %d, want %d", len(p1.Hand), targetBefore-1)
	}
	requireConservation(t, g)
}

func TestPairMismatchedRejected(t *testing.T) {
	g := newTestGame(t, 2)
	p0, p1 := g.Players[0], g.Players[1]
	c1 := giveKind(g, p0, KindCatBlue)
	c2 := giveKind(g, p0, KindCatPink)
	if _, err := g.PlayCards(p0.ID, []uuid.UUID{c1.ID, c2.ID}, p1.ID, uuid.Nil); err == nil {
		t.Error("mismatched pair accepted")
	}
}

func TestFiveCatClaim(t *testing.T) {
	g := newTestGame(t, 3)
	p0 := g.Players[0]

	ids := make([]uuid.UUID, 0, 5)
	for _, k := range catKinds {
		ids = append(ids, giveKind(g, p0, k).ID)
	}
	// Seed the discard pile with something worth taking.
	prize := giveKind(g, p0, KindDefuse)
	g.Discard = append(g.Discard, prize)
	p0.Hand = p0.Hand[:len(p0.Hand)-1]

	res := playAndResolve(t, g, p0.ID, ids, uuid.Nil, prize.ID)
	if res.Claimed == nil || res.Claimed.ID != prize.ID {
		t.Fatalf("claim result: %+v", res)
	}
	back := false
	for _, c := range p0.Hand {
		if c.ID == prize.ID {
			back = true
		}
	}
	if !back {
		t.Error("claimed card not in the actor's hand")
	}
	for _, c := range g.Discard {
		if c.ID == prize.ID {
			t.Error("claimed card still in discard")
		}
	}
	requireConservation(t, g)
}

func TestFiveCatClaimEmptyDiscardRejected(t *testing.T) {
	g := newTestGame(t, 2)
	p0 := g.Players[0]
	ids := make([]uuid.UUID, 0, 5)
	for _, k := range catKinds {
		ids = append(ids, giveKind(g, p0, k).ID)
	}
	if len(g.Discard) != 0 {
		t.Fatal("discard not empty at game start")
	}
	if _, err := g.PlayCards(p0.ID, ids, uuid.Nil, uuid.New()); err == nil {
		t.Error("five-cat claim against empty discard accepted")
	}
}

func TestSeeFuturePeeksTopThree(t *testing.T) {
	g := newTestGame(t, 2)
	p0 := g.Players[0]

	sf := giveKind(g, p0, KindSeeFuture)
	n := len(g.Deck)
	wantTop := []Card{g.Deck[n-1], g.Deck[n-2], g.Deck[n-3]}

	res := playAndResolve(t, g, p0.ID, []uuid.UUID{sf.ID}, uuid.Nil, uuid.Nil)
	if len(res.Peeked) != 3 {
		t.Fatalf("peeked %d cards, want 3", len(res.Peeked))
	}
	for i, c := range res.Peeked {
		if c.ID != wantTop[i].ID {
			t.Errorf("peek[%d] = %s, want %s (draw order)", i, c.Kind, wantTop[i].Kind)
		}
	}
	if g.Phase != PhasePeekPending {
		t.Fatalf("phase %s", g.Phase)
	}
	if len(g.Deck) != n {
		t.Error("peek must not move cards")
	}

	if err := g.AcknowledgePeek(g.Players[1].ID); err == nil {
		t.Error("peek ack accepted from the wrong player")
	}
	if err := g.AcknowledgePeek(p0.ID); err != nil {
		t.Fatalf("AcknowledgePeek: %v", err)
	}
	if g.Phase != PhaseNormal || g.CurrentPlayerID() != p0.ID {
		t.Errorf("after ack: phase=%s current=%s", g.Phase, g.CurrentPlayerID())
	}
}

func TestShuffleActionPreservesDeck(t *testing.T) {
	g := newTestGame(t, 2)
	p0 := g.Players[0]

	sh := giveKind(g, p0, KindShuffle)
	before := map[uuid.UUID]bool{}
	for _, c := range g.Deck {
		before[c.ID] = true
	}
	n := len(g.Deck)

	playAndResolve(t, g, p0.ID, []uuid.UUID{sh.ID}, uuid.Nil, uuid.Nil)
	if len(g.Deck) != n {
		t.Fatalf("deck size changed: %d -> %d", n, len(g.Deck))
	}
	for _, c := range g.Deck {
		if !before[c.ID] {
			t.Errorf("foreign card %s after shuffle", c.ID)
		}
	}
	requireConservation(t, g)
}

func TestDrawBlockedDuringCounterWindow(t *testing.T) {
	g := newTestGame(t, 2)
	p0 := g.Players[0]
	atk := giveKind(g, p0, KindAttack)
	if _, err := g.PlayCards(p0.ID, []uuid.UUID{atk.ID}, uuid.Nil, uuid.Nil); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Draw(p0.ID); err == nil {
		t.Error("draw accepted while the counter window is open")
	}
}

func TestAutoResolveDrawClearsObligation(t *testing.T) {
	g := newTestGame(t, 3)
	p0, p1 := g.Players[0], g.Players[1]

	atk := giveKind(g, p0, KindAttack)
	playAndResolve(t, g, p0.ID, []uuid.UUID{atk.ID}, uuid.Nil, uuid.Nil)

	rigTopNonBomb(t, g)
	res, err := g.AutoResolve(p1.ID)
	if err != nil {
		t.Fatalf("AutoResolve: %v", err)
	}
	if res.Drew == nil || !res.Drew.TurnEnded {
		t.Fatalf("auto result: %+v", res)
	}
	// One draw, then the turn ends with the remaining obligation dropped.
	if g.CurrentPlayerID() != g.Players[2].ID || g.DrawsOwed != 0 {
		t.Errorf("after auto: current=%s owed=%d", g.CurrentPlayerID(), g.DrawsOwed)
	}
	requireConservation(t, g)
}

func TestAutoResolveDefusesRandomly(t *testing.T) {
	g := newTestGame(t, 2)
	p0 := g.Players[0]
	rigTopBomb(t, g)
	if _, err := g.Draw(p0.ID); err != nil {
		t.Fatal(err)
	}

	res, err := g.AutoResolve(p0.ID)
	if err != nil {
		t.Fatalf("AutoResolve: %v", err)
	}
	if !res.AutoDefused || !p0.Alive {
		t.Fatalf("auto defuse: %+v alive=%v", res, p0.Alive)
	}
	bombs := 0
	for _, c := range g.Deck {
		if c.Kind == KindBomb {
			bombs++
		}
	}
	if bombs != 1 {
		t.Errorf("bombs in deck = %d, want 1 back in circulation", bombs)
	}
	requireConservation(t, g)
}

func TestEliminateDeclarerCancelsInterrupt(t *testing.T) {
	g := newTestGame(t, 3)
	p0 := g.Players[0]
	atk := giveKind(g, p0, KindAttack)
	if _, err := g.PlayCards(p0.ID, []uuid.UUID{atk.ID}, uuid.Nil, uuid.Nil); err != nil {
		t.Fatal(err)
	}

	if err := g.EliminatePlayer(p0.ID); err != nil {
		t.Fatalf("EliminatePlayer: %v", err)
	}
	if g.Interrupt.Active || g.Phase == PhaseCounterPending {
		t.Error("interrupt survived its declarer")
	}
	if g.CurrentPlayerID() != g.Players[1].ID || g.DrawsOwed != 0 {
		t.Errorf("after elimination: current=%s owed=%d", g.CurrentPlayerID(), g.DrawsOwed)
	}
	requireConservation(t, g)
}

func TestTwoPlayerScriptedSequence(t *testing.T) {
	g := newTestGame(t, 2)
	p0, p1 := g.Players[0], g.Players[1]

	// Turn 1: seat 0 draws a non-bomb, turn passes.
	rigTopNonBomb(t, g)
	res, err := g.Draw(p0.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.TurnEnded || g.TurnID != 2 || g.CurrentPlayerID() != p1.ID {
		t.Fatalf("step 1: turnEnded=%v turn=%d current=%s", res.TurnEnded, g.TurnID, g.CurrentPlayerID())
	}

	// Turn 2: seat 1 attacks; seat 0 owes two draws.
	atk := giveKind(g, p1, KindAttack)
	ir := playAndResolve(t, g, p1.ID, []uuid.UUID{atk.ID}, uuid.Nil, uuid.Nil)
	if ir.NextOwed != 2 || g.TurnID != 3 || g.CurrentPlayerID() != p0.ID || g.DrawsOwed != 2 {
		t.Fatalf("step 2: nextOwed=%d turn=%d current=%s owed=%d", ir.NextOwed, g.TurnID, g.CurrentPlayerID(), g.DrawsOwed)
	}

	// Turn 3: the first owed draw keeps the turn, the second releases it.
	rigTopNonBomb(t, g)
	res, err = g.Draw(p0.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.TurnEnded || res.DrawsOwedLeft != 1 || g.TurnID != 3 {
		t.Fatalf("step 3a: %+v turn=%d", res, g.TurnID)
	}
	rigTopNonBomb(t, g)
	res, err = g.Draw(p0.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.TurnEnded || res.DrawsOwedLeft != 0 || g.TurnID != 4 || g.CurrentPlayerID() != p1.ID {
		t.Fatalf("step 3b: %+v turn=%d current=%s", res, g.TurnID, g.CurrentPlayerID())
	}
	requireConservation(t, g)
}

func TestFourPlayerEliminationScenario(t *testing.T) {
	g := newTestGame(t, 4)
	victim := g.Players[2]
	stripKind(g, victim, KindDefuse)
	victimCards := map[uuid.UUID]bool{}
	for _, c := range victim.Hand {
		victimCards[c.ID] = true
	}

	// Walk the turn to seat 2.
	for _, seat := range []int{0, 1} {
		rigTopNonBomb(t, g)
		if _, err := g.Draw(g.Players[seat].ID); err != nil {
			t.Fatalf("seat %d draw: %v", seat, err)
		}
	}
	rigTopBomb(t, g)
	res, err := g.Draw(victim.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Eliminated {
		t.Fatal("victim survived an undefusable bomb")
	}

	// Three players remain: no winner yet.
	if g.IsOver() || g.Winner != uuid.Nil || g.AliveCount() != 3 {
		t.Fatalf("premature win evaluation: over=%v winner=%s alive=%d", g.IsOver(), g.Winner, g.AliveCount())
	}
	// The dead hand lives in the discard pile only.
	for _, p := range g.Players {
		for _, c := range p.Hand {
			if victimCards[c.ID] {
				t.Errorf("victim card %s reappeared in a hand", c.ID)
			}
		}
	}
	for _, c := range g.Deck {
		if victimCards[c.ID] {
			t.Errorf("victim card %s reappeared in the deck", c.ID)
		}
	}

	// The win fires only when a single seat remains.
	if err := g.EliminatePlayer(g.Players[1].ID); err != nil {
		t.Fatal(err)
	}
	if g.IsOver() {
		t.Fatal("won with two alive")
	}
	if err := g.EliminatePlayer(g.Players[3].ID); err != nil {
		t.Fatal(err)
	}
	if !g.IsOver() || g.Winner != g.Players[0].ID {
		t.Errorf("over=%v winner=%s, want %s", g.IsOver(), g.Winner, g.Players[0].ID)
	}
	requireConservation(t, g)
}

// TestConservationThroughFullGame plays seeded games to completion on the
// auto-resolve path and checks the card-conservation invariant after every
// single transition.
func TestConservationThroughFullGame(t *testing.T) {
	for _, seed := range []uint64{1, 99, 4242} {
		ids := make([]uuid.UUID, 4)
		for i := range ids {
			ids[i] = uuid.New()
		}
		g, err := NewGame(seed, ids)
		if err != nil {
			t.Fatal(err)
		}

		for steps := 0; !g.IsOver(); steps++ {
			if steps > 500 {
				t.Fatalf("seed %d: game did not terminate", seed)
			}
			if _, err := g.AutoResolve(g.CurrentPlayerID()); err != nil {
				t.Fatalf("seed %d step %d: %v", seed, steps, err)
			}
			if err := g.CheckConservation(); err != nil {
				t.Fatalf("seed %d step %d: %v", seed, steps, err)
			}
		}
		if g.Winner == uuid.Nil || g.AliveCount() != 1 {
			t.Errorf("seed %d: winner=%s alive=%d", seed, g.Winner, g.AliveCount())
		}
	}
}
