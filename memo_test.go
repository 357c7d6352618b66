package dicezap

import "testing"

// TestBetMemoRoundTrip checks P8: a memo built by BuildBetMemo can be
// parsed back to recover the fields that drove the roll.
func TestBetMemoRoundTrip(t *testing.T) {
	var commitment [32]byte
	commitment[0] = 0xab

	memo := BuildBetMemo(
		1000,
		X2.Threshold(),
		X2.Label(),
		"note1commitment",
		commitment,
		"note1multiplier",
		"npub1roller",
		"original zap request content",
		3,
	)

	parsed, err := ParseBetMemo(memo)
	if err != nil {
		t.Fatalf("ParseBetMemo: %v", err)
	}

	if parsed.CommitmentNoteID != "note1commitment" {
		t.Errorf("CommitmentNoteID = %q", parsed.CommitmentNoteID)
	}
	if parsed.MultiplierNoteID != "note1multiplier" {
		t.Errorf("MultiplierNoteID = %q", parsed.MultiplierNoteID)
	}
	if parsed.RollerNpub != "npub1roller" {
		t.Errorf("RollerNpub = %q", parsed.RollerNpub)
	}
	if parsed.Index != 3 {
		t.Errorf("Index = %d, want 3", parsed.Index)
	}
	wantCommitment := "ab" + "00000000000000000000000000000000000000000000000000000000000000"[:62]
	if parsed.Commitment != wantCommitment {
		t.Errorf("Commitment = %q, want %q", parsed.Commitment, wantCommitment)
	}
}

func TestBetMemoRejectsGarbage(t *testing.T) {
	if _, err := ParseBetMemo("not a bet memo at all"); err == nil {
		t.Fatalf("expected error parsing garbage memo")
	}
}
