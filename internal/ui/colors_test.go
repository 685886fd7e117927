package ui

import "testing"

func TestDisable(t *testing.T) {
	saved := []string{ColorReset, ColorBold, ColorDim, ColorCyan, ColorGreen, ColorYellow, ColorWhite, ColorRed}
	t.Cleanup(func() {
		ColorReset, ColorBold, ColorDim = saved[0], saved[1], saved[2]
		ColorCyan, ColorGreen, ColorYellow, ColorWhite, ColorRed = saved[3], saved[4], saved[5], saved[6], saved[7]
	})

	if got := Success("ok"); got == "ok" {
		t.Fatalf("expected color codes before Disable, got %q", got)
	}

	Disable()
	for _, got := range []string{Bold("x"), Success("x"), Info("x"), Warn("x"), Error("x"), Dim("x")} {
		if got != "x" {
			t.Errorf("expected plain text after Disable, got %q", got)
		}
	}
}
