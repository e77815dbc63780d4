package executor

import (
	"fmt"
	"strings"

	display "github.com/inference-gateway/desktop-agent/internal/display"
)

// keyAliases normalises the names models commonly send to canonical keys
var keyAliases = map[string]string{
	"cmd":        "command",
	"super":      "command",
	"meta":       "command",
	"win":        "command",
	"windows":    "command",
	"ctl":        "ctrl",
	"control":    "ctrl",
	"opt":        "option",
	"return":     "enter",
	"esc":        "escape",
	"del":        "delete",
	"bksp":       "backspace",
	"spacebar":   "space",
	"pgup":       "pageup",
	"pgdn":       "pagedown",
	"page_up":    "pageup",
	"page_down":  "pagedown",
	"arrowup":    "up",
	"arrowdown":  "down",
	"arrowleft":  "left",
	"arrowright": "right",
	"caps_lock":  "capslock",
}

// NormalizeKey lower-cases a key name and resolves aliases
func NormalizeKey(key string) string {
	k := strings.TrimSpace(key)
	if len([]rune(k)) != 1 {
		k = strings.ToLower(k)
	}
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

// ParseKeyCombo splits a combination such as "cmd+shift+t" into canonical
// keys, preserving order. A lone "+" is the plus key.
func ParseKeyCombo(combo string) ([]string, error) {
	combo = strings.TrimSpace(combo)
	if combo == "" {
		return nil, fmt.Errorf("empty key combination")
	}
	if combo == "+" {
		return []string{"+"}, nil
	}

	var keys []string
	for _, part := range strings.Split(combo, "+") {
		if strings.TrimSpace(part) == "" {
			return nil, fmt.Errorf("invalid key combination %q", combo)
		}
		key := NormalizeKey(part)
		if !display.IsCanonicalKey(key) {
			return nil, fmt.Errorf("unknown key %q in %q", strings.TrimSpace(part), combo)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
