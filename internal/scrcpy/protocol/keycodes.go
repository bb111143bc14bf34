package protocol

// Android key event actions
const (
	KeyActionDown = uint8(0)
	KeyActionUp   = uint8(1)
)

// Android motion event actions
const (
	MotionActionDown   = uint8(0)
	MotionActionUp     = uint8(1)
	MotionActionMove   = uint8(2)
	MotionActionCancel = uint8(3)
)

// Android motion event buttons
const (
	ButtonPrimary = uint32(1 << 0)
)

// Android keycodes, from the platform KeyEvent definitions
const (
	KeycodeHome       = uint32(3)
	KeycodeBack       = uint32(4)
	KeycodeDpadUp     = uint32(19)
	KeycodeDpadDown   = uint32(20)
	KeycodeDpadLeft   = uint32(21)
	KeycodeDpadRight  = uint32(22)
	KeycodeDpadCenter = uint32(23)
	KeycodeVolumeUp   = uint32(24)
	KeycodeVolumeDown = uint32(25)
	KeycodePower      = uint32(26)
	KeycodeTab        = uint32(61)
	KeycodeEnter      = uint32(66)
	KeycodeMenu       = uint32(82)
	KeycodeEscape     = uint32(111)
	KeycodeAppSwitch  = uint32(187)
)
