package tsl2561

import "math"

// ToLux converts raw channel counts to lux, per the TSL2561 datasheet p.24
// (T/FN/CL package, nominal gain and integration time):
//
//	ratio = ch1/ch0
//	ratio <= 0.50:  0.0304*ch0 - 0.062*ch0*ratio^1.4
//	ratio <= 0.61:  0.0224*ch0 - 0.031*ch1
//	ratio <= 0.80:  0.00128*ch0 - 0.0153*ch1
//	ratio <= 1.30:  0.00146*ch0 - 0.00112*ch1
//	else:           0
//
// ch0 == 0 returns 0 lux: no broadband counts means no measurable light, and
// a defined zero keeps NaN/Inf out of telemetry payloads.
func ToLux(ch0, ch1 uint16) float64 {
	if ch0 == 0 {
		return 0
	}
	c0 := float64(ch0)
	c1 := float64(ch1)
	ratio := c1 / c0
	switch {
	case ratio <= 0.50:
		return 0.0304*c0 - 0.062*c0*math.Pow(ratio, 1.4)
	case ratio <= 0.61:
		return 0.0224*c0 - 0.031*c1
	case ratio <= 0.80:
		return 0.00128*c0 - 0.0153*c1
	case ratio <= 1.30:
		return 0.00146*c0 - 0.00112*c1
	default:
		return 0
	}
}
