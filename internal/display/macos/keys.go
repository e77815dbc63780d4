package macos

import "fmt"

// robotgoKeys maps canonical key names to RobotGo key names
var robotgoKeys = map[string]string{
	"command":   "cmd",
	"ctrl":      "ctrl",
	"alt":       "alt",
	"option":    "alt",
	"shift":     "shift",
	"fn":        "fn",
	"enter":     "enter",
	"escape":    "esc",
	"tab":       "tab",
	"space":     "space",
	"backspace": "backspace",
	"delete":    "delete",
	"up":        "up",
	"down":      "down",
	"left":      "left",
	"right":     "right",
	"home":      "home",
	"end":       "end",
	"pageup":    "pageup",
	"pagedown":  "pagedown",
	"capslock":  "capslock",
	"f1":        "f1",
	"f2":        "f2",
	"f3":        "f3",
	"f4":        "f4",
	"f5":        "f5",
	"f6":        "f6",
	"f7":        "f7",
	"f8":        "f8",
	"f9":        "f9",
	"f10":       "f10",
	"f11":       "f11",
	"f12":       "f12",
}

// robotgoKey resolves a canonical key to the name RobotGo toggles
func robotgoKey(key string) (string, error) {
	if name, ok := robotgoKeys[key]; ok {
		return name, nil
	}
	if runes := []rune(key); len(runes) == 1 {
		return key, nil
	}
	return "", fmt.Errorf("unsupported key: %s", key)
}

// robotgoButton resolves a button name to RobotGo's naming
func robotgoButton(button string) (string, error) {
	switch button {
	case "left", "right":
		return button, nil
	case "middle":
		return "center", nil
	default:
		return "", fmt.Errorf("invalid button: %s (must be left, right, or middle)", button)
	}
}
