package settings

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	s := New()
	if s.ButtonClickSleep() != 50*time.Millisecond || s.KeySleep() != 25*time.Millisecond || s.PollRate() != 17*time.Millisecond {
		t.Fatalf("unexpected timing defaults: %+v", s.Snapshot())
	}
	if s.FingerDiameter() != 50 || !s.Compat() || s.Verbose() {
		t.Fatalf("unexpected defaults: %+v", s.Snapshot())
	}
}

func TestVerboseHook(t *testing.T) {
	s := New()
	var got []bool
	s.OnVerbose(func(on bool) { got = append(got, on) })
	s.SetVerbose(true)
	s.SetVerbose(false)
	if len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("hook calls = %v", got)
	}
	s.OnVerbose(nil)
	s.SetVerbose(true)
	if len(got) != 2 || !s.Verbose() {
		t.Fatalf("hook should be removed")
	}
}

func TestSetters(t *testing.T) {
	s := New()
	s.SetButtonClickSleepMS(10)
	s.SetKeySleepMS(11)
	s.SetPollRateMS(12)
	s.SetFingerDiameter(13)
	s.SetDeviceType(7)
	s.SetCompat(false)
	snap := s.Snapshot()
	want := Snapshot{ButtonClickSleepMS: 10, KeySleepMS: 11, PollRateMS: 12, FingerDiameter: 13, DeviceType: 7}
	if snap != want {
		t.Fatalf("snapshot = %+v want %+v", snap, want)
	}
}
