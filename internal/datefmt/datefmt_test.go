package datefmt

import (
	"testing"
	"time"
)

func TestFormatDetail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"13/09/2025", "13/09/2025"},
		{"13 septembre 2025 à 14h30", "13 septembre 2025 à 14:30"},
		{"Visite le 1/9/25 de 10h à 12h", "01/09/2025 à 10:00"},
		{"Mardi 2 FEVRIER 2027 à 9:05", "2 février 2027 à 09:05"},
		{"le 15 aout 2026", "15 août 2026"},
		{"01/01/70", "01/01/1970"},
		{"01/01/30", "01/01/2030"},
		{"01/01/50", "01/01/2050"},
		{"01/01/51", "01/01/1951"},
		{"à 14h", "14:00"},
		{"à 14h5", "14:05"},
		{"à 25h00 ou 10:15", "10:15"},
		{"  texte   sans\tdate ", "texte sans date"},
	}

	for i, c := range cases {
		if got := FormatDetail(c.in); got != c.want {
			t.Fatalf("case %d: FormatDetail(%q) = %q, want %q", i, c.in, got, c.want)
		}
	}
}

func TestNormalizeDetail(t *testing.T) {
	n := NormalizeDetail("Visite : 24 Septembre 2025 de 9h30 à 11h")
	if n.Label != "24 septembre 2025" {
		t.Fatalf("label = %q", n.Label)
	}
	if n.Time != "09:30" {
		t.Fatalf("time = %q", n.Time)
	}
	if n.Input != "Visite : 24 Septembre 2025 de 9h30 à 11h" {
		t.Fatalf("input = %q", n.Input)
	}
}

func TestFormatHome(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"13/09/2025", "samedi 13 septembre 2025"},
		{"texte sans date", "texte sans date"},
		{"  texte  sans date ", "  texte  sans date "},
		{"Visite le 13/09/2025 de 14h30 à 15h30", "samedi 13 septembre 2025 à 14:30"},
		{"lundi 1 décembre 2025 à 10h", "lundi 1 décembre 2025 à 10:00"},
		{"12 juillet 2025", "samedi 12 juillet 2025"},
		{"5-3-26 14:05", "jeudi 5 mars 2026 à 14:05"},
		{"13 foo 2025", "13 foo 2025"},
		{"31/02/2025", "lundi 31 février 2025"},
		{"13/09/2025 à 25h00", "samedi 13 septembre 2025"},
		{"13.09.2025 9h05", "samedi 13 septembre 2025 à 09:05"},
	}

	for i, c := range cases {
		if got := FormatHome(c.in); got != c.want {
			t.Fatalf("case %d: FormatHome(%q) = %q, want %q", i, c.in, got, c.want)
		}
	}
}

func TestIsUpcoming(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"texte sans date", true},
		{"01/01/2000", false},
		{"01/01/2999", true},
		{"19/10/2026", true},
		{"18/10/2026", false},
		{"01/01/30", true},
		{"01/01/70", false},
		{"18 octobre 2026", false},
		{"Mardi 20 octobre 2026 à 10h", true},
		{"Vente le 19-10-2026", true},
		{"32/01/2020", true},
		{"15/13/2020", true},
		{"15 brumaire 2020", true},
	}

	for i, c := range cases {
		if got := IsUpcoming(c.in, now); got != c.want {
			t.Fatalf("case %d: IsUpcoming(%q) = %v, want %v", i, c.in, got, c.want)
		}
	}
}

func TestIsUpcomingEndOfDay(t *testing.T) {
	lastMilli := time.Date(2026, 10, 19, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if !IsUpcoming("19/10/2026", lastMilli) {
		t.Fatalf("expected the whole day to count as upcoming")
	}
	nextDay := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	if IsUpcoming("19/10/2026", nextDay) {
		t.Fatalf("expected the day to be past at midnight")
	}
}

func TestParseDay(t *testing.T) {
	got, ok := ParseDay("Vente : jeudi 13 Septembre 2025 à 14h", time.UTC)
	if !ok {
		t.Fatalf("expected a date")
	}
	want := time.Date(2025, 9, 13, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseDay = %s, want %s", got, want)
	}
	if _, ok := ParseDay("bientôt", time.UTC); ok {
		t.Fatalf("expected no date")
	}
}

func TestMonthIndex(t *testing.T) {
	cases := map[string]int{
		"janvier":  0,
		"Février":  1,
		"fevr":     1,
		"MARS":     2,
		"juin":     5,
		"Juillet":  6,
		"juil.":    6,
		"août":     7,
		"aout":     7,
		"Sept":     8,
		"décembre": 11,
	}
	for word, want := range cases {
		got, ok := monthIndex(word)
		if !ok || got != want {
			t.Fatalf("monthIndex(%q) = %d, %v; want %d", word, got, ok, want)
		}
	}
	if _, ok := monthIndex("brumaire"); ok {
		t.Fatalf("expected no month for brumaire")
	}
}

func TestFormattersAreDeterministic(t *testing.T) {
	inputs := []string{"13/09/2025 à 14h30", "1er mai 2026", "n'importe quoi", "3 aout 2025 de 9h"}
	for _, in := range inputs {
		if FormatDetail(in) != FormatDetail(in) {
			t.Fatalf("FormatDetail not deterministic for %q", in)
		}
		if FormatHome(in) != FormatHome(in) {
			t.Fatalf("FormatHome not deterministic for %q", in)
		}
	}
}
