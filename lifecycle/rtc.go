package lifecycle

import "fmt"

// rtcDivisors are applied in order as a delta overflows each granularity
// tier: seconds→minutes, minutes→hours, hours→days, days→weeks.
var rtcDivisors = [4]int64{60, 60, 24, 7}

const rtcMaxValue = 0xFFFF

// EncodeRTCDelta compresses a seconds-delta into the AIOC's 16-bit value
// plus a 3-bit granularity (0=sec, 1=min, 2=hour, 3=day, 4=week), mirroring
// cbc_timer_format's goto-chain exactly, including its lossy truncating
// division. This is deliberately not rounded.
//
// delta must be at least 1 second. An error is returned if no granularity
// tier fits the value in 16 bits.
func EncodeRTCDelta(delta int64) (value uint16, granularity uint8, err error) {
	if delta < 1 {
		return 0, 0, fmt.Errorf("lifecycle: rtc delta %d cannot support, must be >= 1", delta)
	}
	gran := 0
	for delta > rtcMaxValue {
		if gran >= len(rtcDivisors) {
			return 0, 0, fmt.Errorf("lifecycle: rtc delta %d weeks, cannot support", delta)
		}
		delta /= rtcDivisors[gran]
		gran++
	}
	return uint16(delta), uint8(gran), nil
}
