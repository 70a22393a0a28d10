package sink

import "testing"

func TestConvertSampleScaling(t *testing.T) {
	dst := make([]int16, 2)
	convertSample(complex(float32(0.1), float32(-0.2)), dst)
	if dst[0] != 200 {
		t.Errorf("I: got %d, want 200", dst[0])
	}
	if dst[1] != -400 {
		t.Errorf("Q: got %d, want -400", dst[1])
	}
}

func TestConvertSampleTruncatesTowardZero(t *testing.T) {
	dst := make([]int16, 2)

	// 0.0004 * 2000 = 0.8 and -0.0004 * 2000 = -0.8; both truncate to 0.
	convertSample(complex(float32(0.0004), float32(-0.0004)), dst)
	if dst[0] != 0 || dst[1] != 0 {
		t.Errorf("got (%d, %d), want (0, 0)", dst[0], dst[1])
	}
}

func TestConvertSampleWrapsOutOfRange(t *testing.T) {
	dst := make([]int16, 2)

	// 20 * 2000 = 40000 does not fit in int16 and wraps to 40000 - 65536.
	// Documented behavior: no clamping is performed.
	convertSample(complex(float32(20), float32(-20)), dst)
	if dst[0] != -25536 {
		t.Errorf("I: got %d, want -25536", dst[0])
	}
	if dst[1] != 25536 {
		t.Errorf("Q: got %d, want 25536", dst[1])
	}
}
