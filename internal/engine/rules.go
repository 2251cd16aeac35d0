package engine

// Rules predicates. All of these are total over arbitrary card lists:
// wrongly sized or empty inputs simply evaluate to false.

// IsPair reports whether cards is exactly two cards of the same kind,
// excluding bombs and defuses (which can never be played as a pair).
func IsPair(cards []Card) bool {
	if len(cards) != 2 {
		return false
	}
	k := cards[0].Kind
	if k == KindBomb || k == KindDefuse {
		return false
	}
	return cards[1].Kind == k
}

// IsFiveDistinctCats reports whether cards is exactly five cat cards with
// all five variants represented.
func IsFiveDistinctCats(cards []Card) bool {
	if len(cards) != 5 {
		return false
	}
	var seen [numKinds]bool
	for _, c := range cards {
		if !c.Kind.IsCat() || seen[c.Kind] {
			return false
		}
		seen[c.Kind] = true
	}
	return true
}
