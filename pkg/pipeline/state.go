package pipeline

import (
	"sort"
	"strconv"
	"strings"
)

// Item is one generated scale item. The number is assigned once at first
// generation and never reused or renumbered.
type Item struct {
	Number    int    `json:"item_number"`
	Stem      string `json:"stem"`
	Rationale string `json:"rationale,omitempty"`
}

// ItemDecision pairs an item number with its computed decision and rationale.
type ItemDecision struct {
	Number   int      `json:"item_number"`
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
}

// State is the mutable run state owned by exactly one execution unit and
// mutated only by the Machine driving it.
type State struct {
	RunID       string
	UserID      string
	Mode        Mode
	Fingerprint string

	ConstructName       string
	ConstructDefinition string
	DimensionInfo       string

	Phase         Phase
	RevisionCount int
	MaxRevisions  int

	ResearchSummary string

	items      map[int]Item
	frozen     map[int]bool
	nextNumber int

	// Latest review round output.
	Ratings   map[int]RatingBundle
	Decisions []ItemDecision
	Synthesis string

	// Latest feedback round.
	FeedbackText string

	// Prior approved items with the same fingerprint (anti-homogeneity).
	PreviousItems []string
}

// NewState initializes a run state entering the research phase.
func NewState(runID, userID string, mode Mode, maxRevisions int) *State {
	return &State{
		RunID:        runID,
		UserID:       userID,
		Mode:         mode,
		Phase:        PhaseWebResearch,
		MaxRevisions: maxRevisions,
		items:        make(map[int]Item),
		frozen:       make(map[int]bool),
		nextNumber:   1,
	}
}

// AddItem registers a newly generated item and assigns the next stable number.
func (s *State) AddItem(stem, rationale string) Item {
	it := Item{Number: s.nextNumber, Stem: stem, Rationale: rationale}
	s.items[it.Number] = it
	s.nextNumber++
	return it
}

// ReplaceItem swaps in revised text for an existing item, keeping its number.
func (s *State) ReplaceItem(number int, stem, rationale string) bool {
	it, ok := s.items[number]
	if !ok {
		return false
	}
	it.Stem = stem
	if rationale != "" {
		it.Rationale = rationale
	}
	s.items[number] = it
	return true
}

// Freeze moves an item to the frozen set. Frozen items are excluded from
// regeneration and review until explicitly revised.
func (s *State) Freeze(number int) {
	if _, ok := s.items[number]; ok {
		s.frozen[number] = true
	}
}

// Unfreeze returns a frozen item to the active set. A REVISE decision beats
// an earlier KEEP for the same item within a round's resolution.
func (s *State) Unfreeze(number int) {
	delete(s.frozen, number)
}

// IsFrozen reports whether an item is currently frozen.
func (s *State) IsFrozen(number int) bool { return s.frozen[number] }

// ActiveItems returns the items still subject to regeneration and review,
// ordered by item number.
func (s *State) ActiveItems() []Item {
	out := make([]Item, 0, len(s.items))
	for n, it := range s.items {
		if !s.frozen[n] {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// FrozenNumbers returns the frozen item numbers in ascending order.
func (s *State) FrozenNumbers() []int {
	out := make([]int, 0, len(s.frozen))
	for n := range s.frozen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// AllItems returns the full item set (active plus frozen) ordered by number.
func (s *State) AllItems() []Item {
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Item looks up one item by number.
func (s *State) Item(number int) (Item, bool) {
	it, ok := s.items[number]
	return it, ok
}

// ItemCount is the size of the full item set.
func (s *State) ItemCount() int { return len(s.items) }

// ItemsText renders items as a numbered plain-text block for prompts and
// run-info snapshots.
func ItemsText(items []Item) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(strconv.Itoa(it.Number))
		b.WriteString(". ")
		b.WriteString(it.Stem)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
