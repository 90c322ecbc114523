package sim

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"

	"botd/internal/command"
)

// Screen size of the simulated display.
const (
	ScreenWidth  = 1280
	ScreenHeight = 720
)

// System simulates battery, display, clock and title services. The clock
// runs at wall speed from a settable offset.
type System struct {
	h *Host

	mu       sync.Mutex
	offset   time.Duration
	screenOn bool
	battery  uint32
	language uint32
	flashes  int
	syncErr  error
}

func newSystem(h *Host) *System {
	return &System{h: h, screenOn: true, battery: 100, language: 1}
}

func (s *System) BatteryCharge() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.battery, nil
}

// SetBattery sets the reported charge percentage.
func (s *System) SetBattery(pct uint32) {
	s.mu.Lock()
	s.battery = pct
	s.mu.Unlock()
}

func (s *System) SetScreen(on bool) error {
	s.mu.Lock()
	s.screenOn = on
	s.mu.Unlock()
	return nil
}

// ScreenOn reports the display power state.
func (s *System) ScreenOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenOn
}

// Screenshot encodes a small gradient frame as JPEG. A powered-off display
// captures black.
func (s *System) Screenshot() ([]byte, error) {
	on := s.ScreenOn()
	img := image.NewRGBA(image.Rect(0, 0, ScreenWidth/16, ScreenHeight/16))
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBA{A: 0xFF}
			if on {
				c.R, c.G, c.B = uint8(x*4), uint8(y*4), 0x80
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *System) SystemLanguage() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language, nil
}

func (s *System) ProgramRunning(programID uint64) bool {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	for _, t := range s.h.titles {
		if t.Meta.TitleID == programID {
			return true
		}
	}
	return false
}

func (s *System) Clock() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Add(s.offset), nil
}

func (s *System) SetClock(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = time.Until(t)
	return nil
}

// SyncClock drops any offset, as a network time sync would.
func (s *System) SyncClock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncErr != nil {
		return s.syncErr
	}
	s.offset = 0
	return nil
}

// FailSync makes SyncClock report err; nil restores success.
func (s *System) FailSync(err error) {
	s.mu.Lock()
	s.syncErr = err
	s.mu.Unlock()
}

func (s *System) GameInfo() (command.GameInfo, error) {
	t, ok := s.h.foreground()
	if !ok {
		return command.GameInfo{}, ErrNoApplication
	}
	return t.Game, nil
}

// Flashes counts LED notifications.
func (s *System) Flashes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flashes
}
