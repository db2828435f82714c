package main

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyCtrlC     = "ctrl+c"
	KeyRecord    = " "
	KeyPause     = "p"
	KeySave      = "s"
	KeyDiscard   = "x"
	KeyPreview   = "v"
	KeyRehearse  = "t"
	KeyReset     = "0"
	KeyReload    = "l"
	KeyFaster    = "+"
	KeyFasterAlt = "="
	KeySlower    = "-"
	KeyFontUp    = "]"
	KeyFontDown  = "["
	KeyCountUp   = ">"
	KeyCountDown = "<"
	KeyDevices   = "i"
	KeyDevicesG  = "ctrl+g"
	KeyRefresh   = "R"
	KeyHelp      = "?"

	KeyUp    = "up"
	KeyDown  = "down"
	KeyJ     = "j"
	KeyK     = "k"
	KeyEnter = "enter"
	KeyEsc   = "esc"
)

const (
	speedStep = 0.25
	fontStep  = 2
)
