package controller

// Button is a bit in State.Buttons.
type Button uint64

const (
	ButtonA       Button = 1 << 0
	ButtonB       Button = 1 << 1
	ButtonX       Button = 1 << 2
	ButtonY       Button = 1 << 3
	ButtonLStick  Button = 1 << 4
	ButtonRStick  Button = 1 << 5
	ButtonL       Button = 1 << 6
	ButtonR       Button = 1 << 7
	ButtonZL      Button = 1 << 8
	ButtonZR      Button = 1 << 9
	ButtonPlus    Button = 1 << 10
	ButtonMinus   Button = 1 << 11
	ButtonLeft    Button = 1 << 12
	ButtonUp      Button = 1 << 13
	ButtonRight   Button = 1 << 14
	ButtonDown    Button = 1 << 15
	ButtonHome    Button = 1 << 18
	ButtonCapture Button = 1 << 19
	ButtonUnused  Button = 1 << 20
	ButtonPalma   Button = 1 << 28
)

var buttons = map[string]Button{
	"A":       ButtonA,
	"B":       ButtonB,
	"X":       ButtonX,
	"Y":       ButtonY,
	"RSTICK":  ButtonRStick,
	"LSTICK":  ButtonLStick,
	"L":       ButtonL,
	"R":       ButtonR,
	"ZL":      ButtonZL,
	"ZR":      ButtonZR,
	"PLUS":    ButtonPlus,
	"MINUS":   ButtonMinus,
	"DLEFT":   ButtonLeft,
	"DL":      ButtonLeft,
	"DUP":     ButtonUp,
	"DU":      ButtonUp,
	"DRIGHT":  ButtonRight,
	"DR":      ButtonRight,
	"DDOWN":   ButtonDown,
	"DD":      ButtonDown,
	"HOME":    ButtonHome,
	"CAPTURE": ButtonCapture,
	"PALMA":   ButtonPalma,
	"UNUSED":  ButtonUnused,
}

// Stick selects an analog stick.
type Stick int

const (
	StickLeft Stick = iota
	StickRight
)

var sticks = map[string]Stick{
	"LEFT":  StickLeft,
	"RIGHT": StickRight,
}

// ParseButton looks up a button by its protocol name.
func ParseButton(name string) (Button, error) {
	if b, ok := buttons[name]; ok {
		return b, nil
	}
	return 0, unknownNameError{kind: "button", name: name}
}

// ParseStick looks up a stick by its protocol name.
func ParseStick(name string) (Stick, error) {
	if s, ok := sticks[name]; ok {
		return s, nil
	}
	return 0, unknownNameError{kind: "stick", name: name}
}

// ClampStick limits v to the stick deflection range.
func ClampStick(v int64) int16 {
	switch {
	case v > StickMax:
		return StickMax
	case v < StickMin:
		return StickMin
	}
	return int16(v)
}
