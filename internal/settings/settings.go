// Package settings holds the runtime-tunable agent parameters changed by the
// configure command. A single Settings value is shared by every session of
// the process, so values survive reconnects.
package settings

import (
	"sync/atomic"
	"time"
)

// Defaults for the tunables.
const (
	DefaultButtonClickSleepMS = 50
	DefaultKeySleepMS         = 25
	DefaultFingerDiameter     = 50
	DefaultPollRateMS         = 17
	// DefaultDeviceType is the Pro Controller.
	DefaultDeviceType = 3
)

// Settings is safe for concurrent use.
type Settings struct {
	buttonClickSleepMS atomic.Int64
	keySleepMS         atomic.Int64
	pollRateMS         atomic.Int64
	fingerDiameter     atomic.Uint32
	deviceType         atomic.Uint32
	compat             atomic.Bool
	verbose            atomic.Bool

	onVerbose atomic.Pointer[func(bool)]
}

// New returns Settings populated with the defaults and legacy compatibility on.
func New() *Settings {
	s := &Settings{}
	s.buttonClickSleepMS.Store(DefaultButtonClickSleepMS)
	s.keySleepMS.Store(DefaultKeySleepMS)
	s.pollRateMS.Store(DefaultPollRateMS)
	s.fingerDiameter.Store(DefaultFingerDiameter)
	s.deviceType.Store(DefaultDeviceType)
	s.compat.Store(true)
	return s
}

func (s *Settings) ButtonClickSleep() time.Duration {
	return time.Duration(s.buttonClickSleepMS.Load()) * time.Millisecond
}

func (s *Settings) SetButtonClickSleepMS(ms int64) { s.buttonClickSleepMS.Store(ms) }

func (s *Settings) KeySleep() time.Duration {
	return time.Duration(s.keySleepMS.Load()) * time.Millisecond
}

func (s *Settings) SetKeySleepMS(ms int64) { s.keySleepMS.Store(ms) }

func (s *Settings) PollRate() time.Duration {
	return time.Duration(s.pollRateMS.Load()) * time.Millisecond
}

func (s *Settings) SetPollRateMS(ms int64) { s.pollRateMS.Store(ms) }

func (s *Settings) FingerDiameter() uint32 { return s.fingerDiameter.Load() }

func (s *Settings) SetFingerDiameter(d uint32) { s.fingerDiameter.Store(d) }

// DeviceType is the virtual controller type used on the next attach.
func (s *Settings) DeviceType() uint32 { return s.deviceType.Load() }

func (s *Settings) SetDeviceType(t uint32) { s.deviceType.Store(t) }

// Compat reports whether legacy compatibility mode is on.
func (s *Settings) Compat() bool { return s.compat.Load() }

func (s *Settings) SetCompat(on bool) { s.compat.Store(on) }

// Verbose reports whether debug logging is enabled.
func (s *Settings) Verbose() bool { return s.verbose.Load() }

// SetVerbose records the flag and forwards it to the hook installed with
// OnVerbose, if any.
func (s *Settings) SetVerbose(on bool) {
	s.verbose.Store(on)
	if fn := s.onVerbose.Load(); fn != nil {
		(*fn)(on)
	}
}

// OnVerbose installs the hook invoked by SetVerbose.
func (s *Settings) OnVerbose(fn func(bool)) {
	if fn == nil {
		s.onVerbose.Store(nil)
		return
	}
	s.onVerbose.Store(&fn)
}

// Snapshot is a point-in-time copy used for status reporting.
type Snapshot struct {
	ButtonClickSleepMS int64  `json:"button_click_sleep_ms"`
	KeySleepMS         int64  `json:"key_sleep_ms"`
	PollRateMS         int64  `json:"poll_rate_ms"`
	FingerDiameter     uint32 `json:"finger_diameter"`
	DeviceType         uint32 `json:"device_type"`
	BackwardsCompat    bool   `json:"backwards_compat"`
	Verbose            bool   `json:"verbose"`
}

func (s *Settings) Snapshot() Snapshot {
	return Snapshot{
		ButtonClickSleepMS: s.buttonClickSleepMS.Load(),
		KeySleepMS:         s.keySleepMS.Load(),
		PollRateMS:         s.pollRateMS.Load(),
		FingerDiameter:     s.fingerDiameter.Load(),
		DeviceType:         s.deviceType.Load(),
		BackwardsCompat:    s.compat.Load(),
		Verbose:            s.verbose.Load(),
	}
}
