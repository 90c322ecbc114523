package command

// table maps command names to handlers. It is never mutated after init.
var table = map[string]handlerFunc{
	"peek":              (*Handler).peek,
	"peekMulti":         (*Handler).peekMulti,
	"peekAbsolute":      (*Handler).peekAbsolute,
	"peekAbsoluteMulti": (*Handler).peekAbsoluteMulti,
	"peekMain":          (*Handler).peekMain,
	"peekMainMulti":     (*Handler).peekMainMulti,
	"poke":              (*Handler).poke,
	"pokeAbsolute":      (*Handler).pokeAbsolute,
	"pokeMain":          (*Handler).pokeMain,
	"pointerAll":        (*Handler).pointerAll,
	"pointerRelative":   (*Handler).pointerRelative,
	"pointerPeek":       (*Handler).pointerPeek,
	"pointerPeekMulti":  (*Handler).pointerPeekMulti,
	"pointerPoke":       (*Handler).pointerPoke,

	"click":            (*Handler).click,
	"press":            (*Handler).press,
	"release":          (*Handler).release,
	"setStick":         (*Handler).setStick,
	"touch":            (*Handler).touch,
	"touchHold":        (*Handler).touchHold,
	"touchDraw":        (*Handler).touchDraw,
	"key":              (*Handler).key,
	"keyMod":           (*Handler).keyMod,
	"keyMulti":         (*Handler).keyMulti,
	"detachController": (*Handler).detachController,

	"getTitleID":        (*Handler).getTitleID,
	"getBuildID":        (*Handler).getBuildID,
	"getTitleVersion":   (*Handler).getTitleVersion,
	"getSystemLanguage": (*Handler).getSystemLanguage,
	"isProgramRunning":  (*Handler).isProgramRunning,
	"getMainNsoBase":    (*Handler).getMainNsoBase,
	"getHeapBase":       (*Handler).getHeapBase,
	"charge":            (*Handler).charge,
	"getVersion":        (*Handler).getVersion,
	"game":              (*Handler).game,
	"configure":         (*Handler).configure,
	"screenOn":          (*Handler).screenOn,
	"screenOff":         (*Handler).screenOff,
	"pixelPeek":         (*Handler).pixelPeek,
	"ping":              (*Handler).ping,

	"getSwitchTime":   (*Handler).getSwitchTime,
	"setSwitchTime":   (*Handler).setSwitchTime,
	"resetSwitchTime": (*Handler).resetSwitchTime,
}

// configureFunc applies one configure value.
type configureFunc func(h *Handler, value string) error

var configureTable = map[string]configureFunc{
	"buttonClickSleepTime":  (*Handler).setButtonClickSleep,
	"keySleepTime":          (*Handler).setKeySleep,
	"fingerDiameter":        (*Handler).setFingerDiameter,
	"pollRate":              (*Handler).setPollRate,
	"enablePA":              (*Handler).setEnablePA,
	"enableLogs":            (*Handler).setEnableLogs,
	"enableBackwardsCompat": (*Handler).setBackwardsCompat,
	"controllerType":        (*Handler).setControllerType,
}

// gameFunc extracts one field of the title's control data.
type gameFunc func(GameInfo) []byte

var gameTable = map[string]gameFunc{
	"name":    func(g GameInfo) []byte { return stripNUL(g.Name) },
	"author":  func(g GameInfo) []byte { return stripNUL(g.Author) },
	"version": func(g GameInfo) []byte { return stripNUL(g.Version) },
	"rating":  func(g GameInfo) []byte { return append([]byte(nil), g.Rating[:]...) },
	"icon":    func(g GameInfo) []byte { return g.Icon },
}
