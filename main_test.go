package main

import "testing"

func TestUnknownCommand(t *testing.T) {
	cases := []struct {
		arg  string
		want bool
	}{
		{"serve", false},
		{"capture", false},
		{"export", false},
		{"import", false},
		{"new", false},
		{"enrich", false},
		{"profiles", false},
		{"help", false},
		{"--port", false},
		{"-h", false},
		{"serv", true},
		{"exprot", true},
		{"tui", true},
	}
	for _, c := range cases {
		if got := unknownCommand(c.arg); got != c.want {
			t.Errorf("unknownCommand(%q) = %v, want %v", c.arg, got, c.want)
		}
	}
}
