package address

import "testing"

func TestToAddress(t *testing.T) {
	cases := []struct {
		x, y int
		want string
	}{
		{0, 0, "LR00"},
		{4, 3, "LR43"},
		{12, 7, "LR127"},
	}
	for _, c := range cases {
		if got := ToAddress(c.x, c.y); got != c.want {
			t.Errorf("ToAddress(%d, %d) = %q, want %q", c.x, c.y, got, c.want)
		}
	}
}
