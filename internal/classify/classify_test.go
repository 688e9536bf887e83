package classify

import "testing"

func TestClassifyDirectMatch(t *testing.T) {
	cases := []struct {
		utterance string
		want      string
	}{
		{"I need a battery replacement", "Battery"},
		{"my LCD is flickering", "LCD"},
		{"the back glass shattered", "Back Glass"},
		{"HOUSING is bent", "Housing"},
	}

	for _, tc := range cases {
		if got := Classify(tc.utterance); got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.utterance, got, tc.want)
		}
	}
}

func TestClassifySynonymFallback(t *testing.T) {
	cases := []struct {
		utterance string
		want      string
	}{
		{"the charging port is broken", "Charge Port"},
		{"my screen is cracked", "LCD"},
		{"phone needs a deep cleaning", "Device Cleaning"},
		{"no storage left on the console", "HDD 500GB"},
	}

	for _, tc := range cases {
		if got := Classify(tc.utterance); got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.utterance, got, tc.want)
		}
	}
}

func TestClassifyUnknown(t *testing.T) {
	if got := Classify("it won't turn on"); got != Unknown {
		t.Fatalf("expected UNKNOWN, got %q", got)
	}
}

func TestClassifyCatalogPrecedesSynonyms(t *testing.T) {
	// "UB Screen" is a catalog name; the bare word "screen" is also a
	// synonym keyword. The catalog scan must win.
	if got := Classify("quote for a ub screen swap"); got != "UB Screen" {
		t.Fatalf("expected UB Screen, got %q", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	const utterance = "camera and screen are both damaged"
	first := Classify(utterance)
	for i := 0; i < 10; i++ {
		if got := Classify(utterance); got != first {
			t.Fatalf("classification not deterministic: %q then %q", first, got)
		}
	}
}
