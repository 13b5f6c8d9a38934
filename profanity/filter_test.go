package profanity

import "testing"

func TestCleanMasksBlockedWords(t *testing.T) {
	f := New()
	if got := f.Clean("shit"); got != "****" {
		t.Errorf("expected ****, got %q", got)
	}
	if got := f.Clean("Holy SHIT cake"); got != "Holy **** cake" {
		t.Errorf("expected case-insensitive masking, got %q", got)
	}
}

func TestCleanLeavesOrdinaryWords(t *testing.T) {
	f := New()
	for _, w := range []string{"taart", "cantaloupe", "classic", "scunthorpe", "チーズ"} {
		if got := f.Clean(w); got != w {
			t.Errorf("Clean(%q) = %q; ordinary word must be untouched", w, got)
		}
	}
}

func TestExtraWords(t *testing.T) {
	f := New("  Blorp ")
	if !f.IsProfane("blorp") {
		t.Fatal("extra word not registered")
	}
	if got := f.Clean("blorp!"); got != "*****!" {
		t.Errorf("expected *****!, got %q", got)
	}
}
