package command

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"botd/internal/controller"
	"botd/internal/hostinfo"
	"botd/internal/protocol"
)

// Valid clock years: [2000, 2060).
const (
	minClockYear = 2000
	maxClockYear = 2060
)

func millis(ms uint64) time.Duration { return time.Duration(ms) * time.Millisecond }

func stripNUL(s string) []byte {
	return bytes.ReplaceAll([]byte(s), []byte{0}, nil)
}

// scalar renders a little-endian integer reply, as fixed-width hex for
// legacy socket clients.
func (h *Handler) scalar(buf []byte) []byte {
	if !h.hexReplies() {
		return buf
	}
	out, ok := protocol.HexifyValue(buf)
	if !ok {
		h.log.Warn().Int("size", len(buf)).Msg("unsupported scalar width, sent raw")
	}
	return out
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func boolByte(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func (h *Handler) getTitleID([]string) ([]byte, error) {
	return h.scalar(le64(h.reload().TitleID)), nil
}

func (h *Handler) getBuildID([]string) ([]byte, error) {
	return h.scalar([]byte{h.reload().BuildID}), nil
}

func (h *Handler) getTitleVersion([]string) ([]byte, error) {
	return h.scalar(le64(h.reload().TitleVersion)), nil
}

func (h *Handler) getMainNsoBase([]string) ([]byte, error) {
	return h.scalar(le64(h.reload().MainBase)), nil
}

func (h *Handler) getHeapBase([]string) ([]byte, error) {
	return h.scalar(le64(h.reload().HeapBase)), nil
}

func (h *Handler) getSystemLanguage([]string) ([]byte, error) {
	lang, err := h.sys.SystemLanguage()
	if err != nil {
		return nil, fmt.Errorf("system language: %w", err)
	}
	return h.scalar(le32(lang)), nil
}

func (h *Handler) isProgramRunning(p []string) ([]byte, error) {
	if err := arity(p, 1); err != nil {
		return nil, err
	}
	id, err := protocol.ParseUint(p[0])
	if err != nil {
		return nil, err
	}
	return h.scalar(boolByte(h.sys.ProgramRunning(id))), nil
}

func (h *Handler) charge([]string) ([]byte, error) {
	pct, err := h.sys.BatteryCharge()
	if err != nil {
		return nil, fmt.Errorf("battery charge: %w", err)
	}
	return h.scalar(le32(pct)), nil
}

func (h *Handler) getVersion([]string) ([]byte, error) {
	v := protocol.Version
	if h.settings.Compat() {
		v = protocol.LegacyVersion
	}
	return []byte(v + protocol.Delimiter), nil
}

func (h *Handler) screenOn([]string) ([]byte, error)  { return nil, h.sys.SetScreen(true) }
func (h *Handler) screenOff([]string) ([]byte, error) { return nil, h.sys.SetScreen(false) }

func (h *Handler) pixelPeek([]string) ([]byte, error) {
	img, err := h.sys.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return h.memReply(img), nil
}

func (h *Handler) ping(p []string) ([]byte, error) { return Ping(p), nil }

func (h *Handler) game(p []string) ([]byte, error) {
	if err := arity(p, 1); err != nil {
		return nil, err
	}
	fn, ok := gameTable[p[0]]
	if !ok {
		return nil, fmt.Errorf("game field %q not found", p[0])
	}
	info, err := h.sys.GameInfo()
	if err != nil {
		return nil, fmt.Errorf("game info: %w", err)
	}
	return fn(info), nil
}

func (h *Handler) configure(p []string) ([]byte, error) {
	if err := arity(p, 2); err != nil {
		return nil, err
	}
	fn, ok := configureTable[p[0]]
	if !ok {
		return nil, fmt.Errorf("configure key %q not found", p[0])
	}
	if err := fn(h, p[1]); err != nil {
		return nil, fmt.Errorf("configure %s: %w", p[0], err)
	}
	h.log.Debug().Str("key", p[0]).Str("value", p[1]).Msg("configured")
	return nil, nil
}

func (h *Handler) setButtonClickSleep(v string) error {
	ms, err := protocol.ParseUint(v)
	if err == nil {
		h.settings.SetButtonClickSleepMS(int64(ms))
	}
	return err
}

func (h *Handler) setKeySleep(v string) error {
	ms, err := protocol.ParseUint(v)
	if err == nil {
		h.settings.SetKeySleepMS(int64(ms))
	}
	return err
}

func (h *Handler) setPollRate(v string) error {
	ms, err := protocol.ParseUint(v)
	if err == nil {
		h.settings.SetPollRateMS(int64(ms))
	}
	return err
}

func (h *Handler) setFingerDiameter(v string) error {
	d, err := protocol.ParseUint(v)
	if err == nil {
		h.settings.SetFingerDiameter(uint32(d))
	}
	return err
}

func (h *Handler) setEnablePA(v string) error {
	on, err := protocol.ParseBool(v)
	if err == nil {
		h.SetEnabledPA(on)
	}
	return err
}

func (h *Handler) setEnableLogs(v string) error {
	on, err := protocol.ParseBool(v)
	if err == nil {
		h.settings.SetVerbose(on)
	}
	return err
}

func (h *Handler) setBackwardsCompat(v string) error {
	on, err := protocol.ParseBool(v)
	if err == nil {
		h.settings.SetCompat(on)
	}
	return err
}

func (h *Handler) setControllerType(v string) error {
	kind, err := protocol.ParseUint(v)
	if err != nil {
		return err
	}
	return h.input.SetDeviceType(controller.DeviceType(kind))
}

func validClockYear(t time.Time) bool {
	return t.Year() >= minClockYear && t.Year() < maxClockYear
}

// getSwitchTime replies with the clock as 8-byte unix seconds. A clock
// outside the valid range is reset to 2000-01-01, keeping the time of day.
// Any failure replies 0.
func (h *Handler) getSwitchTime([]string) ([]byte, error) {
	now, err := h.sys.Clock()
	if err != nil {
		h.log.Error().Err(err).Msg("read clock")
		return le64(0), nil
	}
	if !validClockYear(now) {
		h.log.Warn().Time("clock", now).Msg("clock out of range, resetting to 2000-01-01")
		reset := time.Date(minClockYear, time.January, 1, now.Hour(), now.Minute(), now.Second(), 0, now.Location())
		if err := h.sys.SetClock(reset); err != nil {
			h.log.Error().Err(err).Msg("reset clock")
			return le64(0), nil
		}
		now = reset
	}
	return le64(uint64(now.Unix())), nil
}

func (h *Handler) setSwitchTime(p []string) ([]byte, error) {
	if err := arity(p, 1); err != nil {
		return nil, err
	}
	secs, err := protocol.ParseUint(p[0])
	if err != nil {
		return nil, err
	}
	t := time.Unix(int64(secs), 0)
	if !validClockYear(t) {
		h.log.Warn().Time("clock", t).Msg("requested clock out of range")
		return boolByte(false), nil
	}
	if err := h.sys.SetClock(t); err != nil {
		h.log.Error().Err(err).Msg("set clock")
		return boolByte(false), nil
	}
	return boolByte(true), nil
}

func (h *Handler) resetSwitchTime([]string) ([]byte, error) {
	if err := h.sys.SyncClock(); err != nil {
		h.log.Error().Err(err).Msg("network clock sync")
		return boolByte(false), nil
	}
	return boolByte(true), nil
}

func (h *Handler) reload() hostinfo.Metadata {
	if h.meta == nil {
		return h.md
	}
	h.md = h.meta.Reload()
	return h.md
}
