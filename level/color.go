package level

import (
	"github.com/lucasb-eyer/go-colorful"
)

var bandColors = [...]string{
	Low:      "#6b7280",
	Optimal:  "#22c55e",
	Warning:  "#f59e0b",
	Clipping: "#ef4444",
}

// Color is the flat meter color for a band.
func Color(s Severity) string {
	if s < Low || s > Clipping {
		return bandColors[Low]
	}
	return bandColors[s]
}

var (
	quietColor = mustHex(bandColors[Low])
	goodColor  = mustHex(bandColors[Optimal])
	warnColor  = mustHex(bandColors[Warning])
	clipColor  = mustHex(bandColors[Clipping])
)

// Gradient blends the meter color continuously from a dBFS value: grey to
// green up to -18 dB, green to amber up to -6 dB, amber to red up to 0 dB.
func Gradient(db float64) string {
	var c colorful.Color
	switch {
	case db < -18:
		c = quietColor.BlendHcl(goodColor, ramp(db, -60, -18))
	case db < -6:
		c = goodColor.BlendHcl(warnColor, ramp(db, -18, -6))
	default:
		c = warnColor.BlendHcl(clipColor, ramp(db, -6, 0))
	}
	return c.Clamped().Hex()
}

func ramp(v, lo, hi float64) float64 {
	t := (v - lo) / (hi - lo)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}
