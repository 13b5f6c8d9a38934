package store

import "testing"

func TestJoinEscapesSegments(t *testing.T) {
	p := Join("users", "u1", "scenes", "s", "nouns", "a/b")
	if p != "/users/u1/scenes/s/nouns/a%2Fb" {
		t.Fatalf("unexpected path %q", p)
	}
	parts, err := Split(p)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(parts) != 6 || parts[5] != "a/b" {
		t.Errorf("round trip lost the segment: %v", parts)
	}
}

func TestJoinKeepsUnicode(t *testing.T) {
	parts, err := Split(Join("admin", "scenes", "s", "nouns", "ja-JP", "チーズ"))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if parts[5] != "チーズ" {
		t.Errorf("expected unicode noun, got %q", parts[5])
	}
}

func TestSameJSON(t *testing.T) {
	if !sameJSON([]byte(`{"a": 1, "b": 2}`), []byte(`{"b":2,"a":1}`)) {
		t.Error("expected reordered objects to be equal")
	}
	if sameJSON([]byte(`1`), nil) {
		t.Error("value and absence must differ")
	}
	if !sameJSON(nil, nil) {
		t.Error("two absences are equal")
	}
}
