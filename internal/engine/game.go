package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Phase is the turn machine's current sub-phase.
type Phase uint8

const (
	PhaseNormal        Phase = iota // current player may play or draw
	PhaseDrawPending                // forced draws outstanding from an attack
	PhaseDefusePending              // bomb drawn, awaiting reinsertion
	PhaseFavorPending               // favor declared, awaiting target's card
	PhasePeekPending                // see-future delivered, awaiting ack
	PhaseCounterPending             // interrupt window open
	PhaseGameOver
)

var phaseNames = [...]string{
	"normal", "draw_pending", "defuse_pending", "favor_pending",
	"peek_pending", "counter_pending", "game_over",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// PendingType tags the variant of a pending multi-step action.
type PendingType uint8

const (
	PendingNone PendingType = iota
	PendingDefuseInsert
	PendingFavorGive
	PendingPeekAck
)

// Pending carries the state of the single in-flight multi-step action.
// At most one is active at a time.
type Pending struct {
	Type     PendingType
	PlayerID uuid.UUID // acting player
	TargetID uuid.UUID // favor target (the giver)
	Peeked   []Card    // see-future reveal; visible only to PlayerID
	Bomb     *Card     // bomb held out of the deck while its reinsertion is pending
}

// PlayKind classifies a declared card play.
type PlayKind uint8

const (
	PlaySkip PlayKind = iota
	PlayAttack
	PlayShuffle
	PlaySeeFuture
	PlayFavor
	PlayPairSteal
	PlayFiveCatClaim
	PlayCounterCard
)

var playKindNames = [...]string{
	"skip", "attack", "shuffle", "see_future", "favor",
	"pair_steal", "five_cat_claim", "counter",
}

func (k PlayKind) String() string {
	if int(k) < len(playKindNames) {
		return playKindNames[k]
	}
	return "unknown"
}

// PlayedAction is the immutable audit record of the most recent declared
// action; the latest one is the sole subject of interrupt resolution.
type PlayedAction struct {
	PlayerID  uuid.UUID
	Kind      PlayKind
	CardIDs   []uuid.UUID
	TargetID  uuid.UUID
	Timestamp time.Time
}

// PlayerState is one seat's authoritative state. Away marks a player whose
// transport is gone but whose seat is held open by the grace timer; they
// remain in hand counts and turn order.
type PlayerState struct {
	ID    uuid.UUID
	Hand  []Card
	Alive bool
	Away  bool
}

// Game is the authoritative state for one match. All mutation goes through
// the action methods; callers serialize access (one action at a time per
// room).
type Game struct {
	rnd *Rand

	Players []*PlayerState // fixed seat order for the lifetime of the game
	Deck    []Card         // top of pile = end of slice
	Discard []Card         // append-only except the five-cat claim

	Current   int // seat index of the turn owner
	DrawsOwed int // forced draws outstanding for the turn owner (0 = normal turn)
	Phase     Phase
	Pending   Pending
	Interrupt Interrupt

	LastPlayed *PlayedAction
	Winner     uuid.UUID
	TurnID     int

	// DestroyedBombs counts bombs removed from circulation by undefused
	// draws, so total-card conservation stays checkable.
	DestroyedBombs int

	totalCards int
}

// NewGame builds, deals and arms a fresh game for the given seat order.
// The seed drives every shuffle and random choice, so a fixed seed replays
// an identical deck.
func NewGame(seed uint64, playerIDs []uuid.UUID) (*Game, error) {
	n := len(playerIDs)
	if n < MinPlayers || n > MaxPlayers {
		return nil, fmt.Errorf("%w: need %d..%d players, got %d", ErrInvalidAction, MinPlayers, MaxPlayers, n)
	}
	seen := make(map[uuid.UUID]bool, n)
	for _, id := range playerIDs {
		if id == uuid.Nil || seen[id] {
			return nil, fmt.Errorf("%w: duplicate or nil player id", ErrInvalidAction)
		}
		seen[id] = true
	}

	rnd := NewRand(seed)
	deck, err := BuildDeck(n, rnd)
	if err != nil {
		return nil, err
	}
	hands, deck, err := Deal(deck, n)
	if err != nil {
		return nil, err
	}
	deck = InsertBombs(deck, n, rnd)

	g := &Game{
		rnd:     rnd,
		Players: make([]*PlayerState, n),
		Deck:    deck,
		Discard: make([]Card, 0, 16),
		Phase:   PhaseNormal,
		TurnID:  1,
	}
	for i, id := range playerIDs {
		g.Players[i] = &PlayerState{ID: id, Hand: hands[i], Alive: true}
	}
	g.totalCards = len(g.Deck)
	for _, p := range g.Players {
		g.totalCards += len(p.Hand)
	}
	return g, nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// CurrentPlayerID returns the turn owner's id, or uuid.Nil once the game is
// over.
func (g *Game) CurrentPlayerID() uuid.UUID {
	if g.Phase == PhaseGameOver {
		return uuid.Nil
	}
	return g.Players[g.Current].ID
}

// PlayerByID returns the seat state for id, or nil.
func (g *Game) PlayerByID(id uuid.UUID) *PlayerState {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *Game) seatOf(id uuid.UUID) int {
	for i, p := range g.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// AliveCount returns the number of non-eliminated players.
func (g *Game) AliveCount() int {
	n := 0
	for _, p := range g.Players {
		if p.Alive {
			n++
		}
	}
	return n
}

// IsOver reports whether the game reached its terminal state.
func (g *Game) IsOver() bool { return g.Phase == PhaseGameOver }

// SetAway marks or clears a seat's away status. Away players stay in turn
// order; the supervisor auto-resolves their turns.
func (g *Game) SetAway(id uuid.UUID, away bool) {
	if p := g.PlayerByID(id); p != nil {
		p.Away = away
	}
}

// owedPhase maps the outstanding draw obligation to the matching phase.
func (g *Game) owedPhase() Phase {
	if g.DrawsOwed > 0 {
		return PhaseDrawPending
	}
	return PhaseNormal
}

func (g *Game) nextAliveFrom(idx int) int {
	n := len(g.Players)
	for step := 1; step <= n; step++ {
		cand := (idx + step) % n
		if g.Players[cand].Alive {
			return cand
		}
	}
	return idx
}

// advanceTurn hands the turn to the next alive seat with owed forced draws
// outstanding (0 for a normal turn).
func (g *Game) advanceTurn(owed int) {
	g.Current = g.nextAliveFrom(g.Current)
	g.DrawsOwed = owed
	g.TurnID++
	g.Phase = g.owedPhase()
	g.Pending = Pending{}
}

func (g *Game) endTurn() { g.advanceTurn(0) }

// ---------------------------------------------------------------------------
// Draw flow
// ---------------------------------------------------------------------------

// DrawResult describes the outcome of a single draw.
type DrawResult struct {
	Card          Card
	Bomb          bool
	DefusePending bool // bomb drawn, holder must choose a reinsert position
	Eliminated    bool
	TurnEnded     bool
	DrawsOwedLeft int
}

// Draw removes the top deck card for the turn owner. A bomb routes through
// the defuse-or-eliminate path; any other card joins the hand and ticks the
// forced-draw obligation.
func (g *Game) Draw(playerID uuid.UUID) (*DrawResult, error) {
	if g.Phase != PhaseNormal && g.Phase != PhaseDrawPending {
		return nil, fmt.Errorf("%w: cannot draw in phase %s", ErrInvalidAction, g.Phase)
	}
	if g.CurrentPlayerID() != playerID {
		return nil, fmt.Errorf("%w: not your turn", ErrInvalidAction)
	}
	return g.drawLocked(playerID)
}

// drawLocked performs the draw without turn validation. Also used by the
// auto-resolve path.
func (g *Game) drawLocked(playerID uuid.UUID) (*DrawResult, error) {
	if len(g.Deck) == 0 {
		// Unreachable by construction: bombs never leave the draw pile
		// except while a defuse insert is pending, and no draw is legal in
		// that phase.
		return nil, fmt.Errorf("%w: draw from empty deck", ErrInconsistent)
	}
	p := g.PlayerByID(playerID)
	top := len(g.Deck) - 1
	card := g.Deck[top]
	g.Deck = g.Deck[:top]

	res := &DrawResult{Card: card}
	if card.Kind == KindBomb {
		res.Bomb = true
		if handHasKind(p.Hand, KindDefuse) {
			g.Phase = PhaseDefusePending
			bomb := card
			g.Pending = Pending{Type: PendingDefuseInsert, PlayerID: playerID, Bomb: &bomb}
			res.DefusePending = true
			return res, nil
		}
		// No defuse: the bomb is destroyed and the drawer eliminated.
		g.DestroyedBombs++
		res.Eliminated = true
		res.TurnEnded = true
		g.eliminateSeat(g.seatOf(playerID))
		return res, nil
	}

	p.Hand = append(p.Hand, card)
	if g.DrawsOwed > 0 {
		g.DrawsOwed--
	}
	res.DrawsOwedLeft = g.DrawsOwed
	if g.DrawsOwed > 0 {
		g.Phase = PhaseDrawPending
		return res, nil
	}
	res.TurnEnded = true
	g.endTurn()
	return res, nil
}

// DefuseInsert consumes one defuse from the pending holder's hand and puts
// the held bomb back at the chosen deck position (0 = bottom, len(deck) =
// top). Position is clamped. Consuming the defuse and reinserting the bomb
// are one transaction; the turn then ends.
func (g *Game) DefuseInsert(playerID uuid.UUID, position int) (*Card, error) {
	if g.Phase != PhaseDefusePending || g.Pending.Type != PendingDefuseInsert {
		return nil, fmt.Errorf("%w: no defuse pending", ErrInvalidAction)
	}
	if g.Pending.PlayerID != playerID {
		return nil, fmt.Errorf("%w: not your bomb", ErrInvalidAction)
	}
	p := g.PlayerByID(playerID)
	defuse, ok := takeKind(&p.Hand, KindDefuse)
	if !ok {
		return nil, fmt.Errorf("%w: defuse pending without defuse in hand", ErrInconsistent)
	}
	g.Discard = append(g.Discard, defuse)

	if position < 0 {
		position = 0
	}
	if position > len(g.Deck) {
		position = len(g.Deck)
	}
	bomb := *g.Pending.Bomb
	g.Deck = append(g.Deck, Card{})
	copy(g.Deck[position+1:], g.Deck[position:])
	g.Deck[position] = bomb

	g.endTurn()
	return &defuse, nil
}

// ---------------------------------------------------------------------------
// Pending resolutions
// ---------------------------------------------------------------------------

// GiveCard resolves a pending favor: the target hands the chosen card to the
// favor's actor, play then resumes with the actor still on turn.
func (g *Game) GiveCard(playerID uuid.UUID, cardID uuid.UUID) (*Card, error) {
	if g.Phase != PhaseFavorPending || g.Pending.Type != PendingFavorGive {
		return nil, fmt.Errorf("%w: no favor pending", ErrInvalidAction)
	}
	if g.Pending.TargetID != playerID {
		return nil, fmt.Errorf("%w: favor was not asked of you", ErrInvalidAction)
	}
	giver := g.PlayerByID(playerID)
	card, ok := takeCard(&giver.Hand, cardID)
	if !ok {
		return nil, fmt.Errorf("%w: card not in hand", ErrInvalidAction)
	}
	actor := g.PlayerByID(g.Pending.PlayerID)
	actor.Hand = append(actor.Hand, card)
	g.Pending = Pending{}
	g.Phase = g.owedPhase()
	return &card, nil
}

// AcknowledgePeek closes a see-future reveal and returns play to the acting
// player's turn.
func (g *Game) AcknowledgePeek(playerID uuid.UUID) error {
	if g.Phase != PhasePeekPending || g.Pending.Type != PendingPeekAck {
		return fmt.Errorf("%w: no peek pending", ErrInvalidAction)
	}
	if g.Pending.PlayerID != playerID {
		return fmt.Errorf("%w: not your peek", ErrInvalidAction)
	}
	g.Pending = Pending{}
	g.Phase = g.owedPhase()
	return nil
}

// ---------------------------------------------------------------------------
// Supervisor paths
// ---------------------------------------------------------------------------

// AutoResult describes what an auto-resolved turn did.
type AutoResult struct {
	Drew           *DrawResult
	DefusePosition int   // deck position chosen for an auto-defuse
	AutoDefused    bool
	GaveCard       *Card // favor resolved with a random card
	AckedPeek      bool
	FavorFizzled   bool
}

// AutoResolve plays the forced "no action" for playerID: the turn-deadline
// and away-player policy. In a play phase it draws once and ends the turn
// (clearing any remaining owed draws); a bomb drawn this way is auto-defused
// into a random position when possible. Pending phases resolve to their
// neutral outcome.
func (g *Game) AutoResolve(playerID uuid.UUID) (*AutoResult, error) {
	res := &AutoResult{}
	switch g.Phase {
	case PhaseDefusePending:
		if g.Pending.PlayerID != playerID {
			return nil, fmt.Errorf("%w: not this player's pending action", ErrInvalidAction)
		}
		pos := g.rnd.Intn(len(g.Deck) + 1)
		if _, err := g.DefuseInsert(playerID, pos); err != nil {
			return nil, err
		}
		res.AutoDefused = true
		res.DefusePosition = pos
		return res, nil

	case PhaseFavorPending:
		if g.Pending.TargetID != playerID {
			return nil, fmt.Errorf("%w: not this player's pending action", ErrInvalidAction)
		}
		giver := g.PlayerByID(playerID)
		if len(giver.Hand) == 0 {
			g.Pending = Pending{}
			g.Phase = g.owedPhase()
			res.FavorFizzled = true
			return res, nil
		}
		pick := giver.Hand[g.rnd.Intn(len(giver.Hand))]
		card, err := g.GiveCard(playerID, pick.ID)
		if err != nil {
			return nil, err
		}
		res.GaveCard = card
		return res, nil

	case PhasePeekPending:
		if err := g.AcknowledgePeek(playerID); err != nil {
			return nil, err
		}
		res.AckedPeek = true
		return res, nil

	case PhaseNormal, PhaseDrawPending:
		if g.CurrentPlayerID() != playerID {
			return nil, fmt.Errorf("%w: not this player's turn", ErrInvalidAction)
		}
		drew, err := g.drawLocked(playerID)
		if err != nil {
			return nil, err
		}
		res.Drew = drew
		if drew.DefusePending {
			pos := g.rnd.Intn(len(g.Deck) + 1)
			if _, err := g.DefuseInsert(playerID, pos); err != nil {
				return nil, err
			}
			res.AutoDefused = true
			res.DefusePosition = pos
			return res, nil
		}
		// Auto-draw once and end the turn, remaining obligation included.
		if !drew.TurnEnded && !g.IsOver() {
			g.endTurn()
			drew.TurnEnded = true
		}
		return res, nil

	default:
		return nil, fmt.Errorf("%w: nothing to auto-resolve in phase %s", ErrInvalidAction, g.Phase)
	}
}

// EliminatePlayer removes a player from the game outside the bomb path: the
// disconnect grace expiry. The hand is discarded and win evaluation re-runs,
// exactly as for a bomb elimination.
func (g *Game) EliminatePlayer(playerID uuid.UUID) error {
	if g.Phase == PhaseGameOver {
		return fmt.Errorf("%w: game over", ErrInvalidAction)
	}
	idx := g.seatOf(playerID)
	if idx < 0 || !g.Players[idx].Alive {
		return fmt.Errorf("%w: player not in game", ErrInvalidAction)
	}
	g.eliminateSeat(idx)
	return nil
}

// eliminateSeat discards the seat's hand, untangles any pending state that
// involved the player, advances the turn if it was theirs, and re-runs the
// win check.
func (g *Game) eliminateSeat(idx int) {
	p := g.Players[idx]
	p.Alive = false
	g.Discard = append(g.Discard, p.Hand...)
	p.Hand = nil

	// A bomb held for a pending defuse insert dies with its holder.
	if g.Pending.Type == PendingDefuseInsert && g.Pending.PlayerID == p.ID {
		g.DestroyedBombs++
		g.Pending = Pending{}
		g.Phase = g.owedPhase()
	}
	// A favor involving the player in either role fizzles.
	if g.Pending.Type == PendingFavorGive &&
		(g.Pending.PlayerID == p.ID || g.Pending.TargetID == p.ID) {
		g.Pending = Pending{}
		g.Phase = g.owedPhase()
	}
	if g.Pending.Type == PendingPeekAck && g.Pending.PlayerID == p.ID {
		g.Pending = Pending{}
		g.Phase = g.owedPhase()
	}
	// An open interrupt window whose declarer died resolves as cancelled.
	if g.Interrupt.Active && g.Interrupt.Play.Actor == p.ID {
		g.Interrupt = Interrupt{}
		g.Phase = g.owedPhase()
	}

	if g.checkWin() {
		return
	}
	if g.Current == idx {
		g.advanceTurn(0)
	}
}

// checkWin transitions to GameOver when one player remains.
func (g *Game) checkWin() bool {
	if g.AliveCount() != 1 {
		return false
	}
	for _, p := range g.Players {
		if p.Alive {
			g.Winner = p.ID
			break
		}
	}
	g.Phase = PhaseGameOver
	g.Pending = Pending{}
	g.Interrupt = Interrupt{}
	g.DrawsOwed = 0
	return true
}

// ---------------------------------------------------------------------------
// Invariants
// ---------------------------------------------------------------------------

// CheckConservation verifies that no card was duplicated or lost: the deck,
// discard pile, all hands, destroyed bombs and any bomb held mid-defuse must
// sum to the dealt total, with all ids distinct.
func (g *Game) CheckConservation() error {
	total := len(g.Deck) + len(g.Discard) + g.DestroyedBombs
	for _, p := range g.Players {
		total += len(p.Hand)
	}
	if g.Pending.Bomb != nil {
		total++
	}
	if total != g.totalCards {
		return fmt.Errorf("%w: card count %d, expected %d", ErrInconsistent, total, g.totalCards)
	}
	seen := make(map[uuid.UUID]bool, total)
	check := func(cards []Card) error {
		for _, c := range cards {
			if seen[c.ID] {
				return fmt.Errorf("%w: duplicate card %s", ErrInconsistent, c.ID)
			}
			seen[c.ID] = true
		}
		return nil
	}
	if err := check(g.Deck); err != nil {
		return err
	}
	if err := check(g.Discard); err != nil {
		return err
	}
	for _, p := range g.Players {
		if err := check(p.Hand); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Hand helpers
// ---------------------------------------------------------------------------

func handHasKind(hand []Card, kind Kind) bool {
	for _, c := range hand {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// takeKind removes the first card of kind from hand, preserving order.
func takeKind(hand *[]Card, kind Kind) (Card, bool) {
	for i, c := range *hand {
		if c.Kind == kind {
			*hand = append((*hand)[:i], (*hand)[i+1:]...)
			return c, true
		}
	}
	return Card{}, false
}

// takeCard removes the card with id from hand, preserving display order.
func takeCard(hand *[]Card, id uuid.UUID) (Card, bool) {
	for i, c := range *hand {
		if c.ID == id {
			*hand = append((*hand)[:i], (*hand)[i+1:]...)
			return c, true
		}
	}
	return Card{}, false
}
