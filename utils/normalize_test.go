package utils

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Mbappé", "mbappe"},
		{"  O'Neill  ", "oneill"},
		{"Müller", "muller"},
		{"N'Golo Kanté", "ngolokante"},
		{"Saint-Maximin", "saintmaximin"},
		{"RONALDO", "ronaldo"},
		{"", ""},
		{"!!!", ""},
	}
	for _, c := range cases {
		if got := NormalizeName(c.in); got != c.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsNameMatch(t *testing.T) {
	cases := []struct {
		correct string
		guess   string
		want    bool
	}{
		{"Kylian Mbappé", "mbappe", true},
		{"Kylian Mbappé", "Kylian Mbappe", true},
		{"Kylian Mbappé", "kylian", true},
		{"Kylian Mbappé", "KYLIAN MBAPPÉ", true},
		{"Erling Haaland", "haland", false},
		{"Erling Haaland", "Haaland", true},
		{"Luka Modrić", "modric", true},
		{"Luka Modrić", "", false},
		{"Son Heung-min", "son heungmin", true}, // hyphen and spaces drop out
		{"Son Heung-min", "Son", true},
	}
	for _, c := range cases {
		if got := IsNameMatch(c.correct, c.guess); got != c.want {
			t.Errorf("IsNameMatch(%q, %q) = %v, want %v", c.correct, c.guess, got, c.want)
		}
	}
}
