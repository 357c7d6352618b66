package dicezap

import "fmt"

// Multiplier is one of the 11 fixed payout tiers a roller can bet against.
// factor, threshold and label are immutable constants of the enumeration;
// they are never derived or computed at runtime.
type Multiplier int

const (
	X1_05 Multiplier = iota
	X1_1
	X1_33
	X1_5
	X2
	X3
	X10
	X25
	X50
	X100
	X1000
)

// multiplierDef is the (factor, threshold, label) triple for one tier.
type multiplierDef struct {
	factor    float64
	threshold uint16
	label     string
}

// multiplierTable is the canonical 11-entry payout table. threshold is
// chosen so that threshold/65536 ≈ (1/factor) * house_edge; it is loaded
// once and never recomputed.
var multiplierTable = map[Multiplier]multiplierDef{
	X1_05: {factor: 1.05, threshold: 60541, label: "1.05x"},
	X1_1:  {factor: 1.10, threshold: 57789, label: "1.1x"},
	X1_33: {factor: 1.33, threshold: 47796, label: "1.33x"},
	X1_5:  {factor: 1.50, threshold: 42379, label: "1.5x"},
	X2:    {factor: 2.00, threshold: 31784, label: "2x"},
	X3:    {factor: 3.00, threshold: 21189, label: "3x"},
	X10:   {factor: 10.0, threshold: 6356, label: "10x"},
	X25:   {factor: 25.0, threshold: 2542, label: "25x"},
	X50:   {factor: 50.0, threshold: 1271, label: "50x"},
	X100:  {factor: 100.0, threshold: 635, label: "100x"},
	X1000: {factor: 1000.0, threshold: 64, label: "1000x"},
}

// allMultipliers enumerates the table in canonical, increasing-factor order.
var allMultipliers = []Multiplier{X1_05, X1_1, X1_33, X1_5, X2, X3, X10, X25, X50, X100, X1000}

// Factor returns the payout multiplier (rational, stored as float64).
func (m Multiplier) Factor() float64 {
	return multiplierTable[m].factor
}

// Threshold returns the u16 strictly below which a roll wins.
func (m Multiplier) Threshold() uint16 {
	return multiplierTable[m].threshold
}

// Label returns the display string, e.g. "2x".
func (m Multiplier) Label() string {
	return multiplierTable[m].label
}

func (m Multiplier) String() string {
	def, ok := multiplierTable[m]
	if !ok {
		return "Multiplier(invalid)"
	}
	return def.label
}

// ParseMultiplierLabel recovers a Multiplier from its display label, used
// when round-tripping the bet memo.
func ParseMultiplierLabel(label string) (Multiplier, error) {
	for _, m := range allMultipliers {
		if m.Label() == label {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown multiplier label %q", label)
}

// MultiplierNote binds a Multiplier to the opaque identifier of its
// externally-published announcement note. Loaded once at startup from
// configuration and immutable thereafter.
type MultiplierNote struct {
	Multiplier Multiplier
	NoteID     string
}

// Multipliers is the immutable, startup-loaded table of MultiplierNote
// bindings that bet intake consults to resolve a zapped note id.
type Multipliers struct {
	notes []MultiplierNote
}

// NewMultipliers constructs the table from a set of note bindings. Callers
// (the config loader) are expected to supply exactly the 11 canonical
// multipliers, each bound to a distinct note id.
func NewMultipliers(notes []MultiplierNote) *Multipliers {
	cp := make([]MultiplierNote, len(notes))
	copy(cp, notes)
	return &Multipliers{notes: cp}
}

// GetByNoteID resolves a MultiplierNote from the published note id a roller
// zapped. Returns false if unknown.
func (m *Multipliers) GetByNoteID(noteID string) (MultiplierNote, bool) {
	for _, note := range m.notes {
		if note.NoteID == noteID {
			return note, true
		}
	}
	return MultiplierNote{}, false
}

// MaxBetSat is a deployment parameter: the worst-case payout bound per
// multiplier. The intake layer rejects any invoice request whose amount
// exceeds this, converted to msat.
type MaxBetTable map[Multiplier]uint64

func (t MaxBetTable) MaxBetSat(m Multiplier) uint64 {
	if v, ok := t[m]; ok {
		return v
	}
	return 0
}

// CalculatePayoutSat computes the payout in satoshis from an invoice whose
// value is amountMsat, matching existing behavior: single-precision float
// rounding, floor((amount_msat/1000) * factor).
func CalculatePayoutSat(amountMsat uint64, factor float64) uint64 {
	sat := float32(amountMsat) / 1000.0
	payout := sat * float32(factor)
	return uint64(payout)
}
