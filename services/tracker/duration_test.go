package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToMinutes(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"5 hours 30 mins", 330},
		{"45 mins", 45},
		{"2 hours", 120},
		{"1 hour 15 mins", 75},
		{"N/A", 0},
		{"", 0},
		{"2.5 hours", 150},
		{"10.5 Hours", 630},
		{"1 min", 1},
		{"3 HOURS 5 MINS", 185},
		{"87 questions", 0},
		{"total of 1.5 hours on-demand video", 90},
	}
	for _, c := range cases {
		t.Run(c.text, func(t *testing.T) {
			require.Equal(t, c.want, ToMinutes(c.text))
		})
	}
}
