package led

import "testing"

func TestRGBLerp(t *testing.T) {
	red := RGB{1, 0, 0}
	blue := RGB{0, 0, 1}

	tests := []struct {
		name string
		a    float32
		want RGB
	}{
		{"start", 0, red},
		{"end", 1, blue},
		{"half", 0.5, RGB{0.5, 0, 0.5}},
		{"below range", -3, red},
		{"above range", 7, blue},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := red.Lerp(blue, test.a); got != test.want {
				t.Errorf("Lerp(%v) = %v, want %v", test.a, got, test.want)
			}
		})
	}
}

func TestRGBQuantize(t *testing.T) {
	r, g, b := RGB{1.5, -0.2, 1}.Quantize()
	if r != 255 || g != 0 || b != 255 {
		t.Fatalf("Quantize = (%d, %d, %d), want (255, 0, 255)", r, g, b)
	}
}

func TestRGBText(t *testing.T) {
	var c RGB
	if err := c.UnmarshalText([]byte("#00ffff")); err != nil {
		t.Fatal(err)
	}
	if c != (RGB{0, 1, 1}) {
		t.Fatalf("parsed %v, want cyan", c)
	}
	if s := c.String(); s != "#00ffff" {
		t.Fatalf("String = %q", s)
	}

	for _, bad := range []string{"", "#fff", "#gg0000", "#0000000"} {
		if err := c.UnmarshalText([]byte(bad)); err == nil {
			t.Errorf("UnmarshalText(%q) succeeded", bad)
		}
	}
}

func TestLEDsResize(t *testing.T) {
	l := NewLEDs(4)
	l.Fill(White)

	if got := l.Resize(2); len(got) != 2 || &got[0] != &l[0] {
		t.Fatal("Resize to smaller length did not reuse storage")
	}
	if got := l.Resize(8); len(got) != 8 || got[0] != Black {
		t.Fatal("Resize to larger length did not allocate a cleared strip")
	}
}
