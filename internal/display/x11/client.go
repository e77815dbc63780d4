package x11

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	xgb "github.com/BurntSushi/xgb"
	xproto "github.com/BurntSushi/xgb/xproto"
	xtest "github.com/BurntSushi/xgb/xtest"
	xgbutil "github.com/BurntSushi/xgbutil"
	keybind "github.com/BurntSushi/xgbutil/keybind"
	xgraphics "github.com/BurntSushi/xgbutil/xgraphics"

	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

// X11Client wraps an X11 connection with the XTEST extension loaded
type X11Client struct {
	xu      *xgbutil.XUtil
	conn    *xgb.Conn
	screen  *xproto.ScreenInfo
	display string
}

// Character mapping tables for X11 key names
var (
	shiftChars = map[rune]string{
		'!': "exclam", '@': "at", '#': "numbersign", '$': "dollar",
		'%': "percent", '^': "asciicircum", '&': "ampersand", '*': "asterisk",
		'(': "parenleft", ')': "parenright", '_': "underscore", '+': "plus",
		'{': "braceleft", '}': "braceright", '|': "bar", ':': "colon",
		'"': "quotedbl", '<': "less", '>': "greater", '?': "question",
		'~': "asciitilde",
	}

	punctuationChars = map[rune]string{
		'.': "period", ',': "comma", ';': "semicolon", '\'': "apostrophe",
		'/': "slash", '\\': "backslash", '-': "minus", '=': "equal",
		'[': "bracketleft", ']': "bracketright", '`': "grave",
	}

	// namedKeysyms maps canonical key names to X11 keysym names
	namedKeysyms = map[string]string{
		"command":   "Super_L",
		"ctrl":      "Control_L",
		"alt":       "Alt_L",
		"option":    "Alt_L",
		"shift":     "Shift_L",
		"enter":     "Return",
		"escape":    "Escape",
		"tab":       "Tab",
		"space":     "space",
		"backspace": "BackSpace",
		"delete":    "Delete",
		"up":        "Up",
		"down":      "Down",
		"left":      "Left",
		"right":     "Right",
		"home":      "Home",
		"end":       "End",
		"pageup":    "Prior",
		"pagedown":  "Next",
		"capslock":  "Caps_Lock",
	}
)

// NewX11Client connects to the given display and loads XTEST
func NewX11Client(display string) (*X11Client, error) {
	// xgbutil prints connection noise to stderr before returning an error
	oldStderr := os.Stderr
	devNull, devErr := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if devErr == nil {
		os.Stderr = devNull
	}

	xu, err := xgbutil.NewConnDisplay(display)

	if devErr == nil {
		os.Stderr = oldStderr
		_ = devNull.Close()
	}

	if err != nil {
		logger.Error("Failed to connect to X11 display", "display", display, "error", err)
		return nil, fmt.Errorf("failed to connect to X11 display %s: %w", display, err)
	}

	if err := xtest.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("failed to initialize XTEST extension: %w", err)
	}

	keybind.Initialize(xu)

	return &X11Client{
		xu:      xu,
		conn:    xu.Conn(),
		screen:  xproto.Setup(xu.Conn()).DefaultScreen(xu.Conn()),
		display: display,
	}, nil
}

// Close closes the X11 connection
func (c *X11Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// ScreenSize returns the root window size. X11 has no separate logical
// space, so this is both the physical and the input size.
func (c *X11Client) ScreenSize() (int, int) {
	return int(c.screen.WidthInPixels), int(c.screen.HeightInPixels)
}

// CaptureRoot grabs the whole root window
func (c *X11Client) CaptureRoot() (image.Image, error) {
	ximg, err := xgraphics.NewDrawable(c.xu, xproto.Drawable(c.screen.Root))
	if err != nil {
		return nil, fmt.Errorf("failed to capture root window: %w", err)
	}
	return ximg, nil
}

// CursorPosition returns the pointer position on the root window
func (c *X11Client) CursorPosition() (int, int, error) {
	pointer, err := xproto.QueryPointer(c.conn, c.screen.Root).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query pointer: %w", err)
	}
	return int(pointer.RootX), int(pointer.RootY), nil
}

// WarpPointer moves the pointer to absolute root coordinates
func (c *X11Client) WarpPointer(x, y int) error {
	err := xproto.WarpPointerChecked(
		c.conn,
		xproto.WindowNone,
		c.screen.Root,
		0, 0,
		0, 0,
		int16(x), int16(y),
	).Check()
	if err != nil {
		return fmt.Errorf("failed to move mouse: %w", err)
	}

	c.conn.Sync()
	return nil
}

// PressButton sends clicks press/release pairs for an X11 button code
func (c *X11Client) PressButton(ctx context.Context, buttonCode byte, clicks int, interval time.Duration) error {
	for i := 0; i < clicks; i++ {
		if err := c.fakeButton(xproto.ButtonPress, buttonCode); err != nil {
			return fmt.Errorf("failed to send button press: %w", err)
		}
		time.Sleep(20 * time.Millisecond)
		if err := c.fakeButton(xproto.ButtonRelease, buttonCode); err != nil {
			return fmt.Errorf("failed to send button release: %w", err)
		}

		if i < clicks-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}

	c.conn.Sync()
	return nil
}

func (c *X11Client) fakeButton(eventType byte, buttonCode byte) error {
	return xtest.FakeInputChecked(c.conn, eventType, buttonCode, 0, c.screen.Root, 0, 0, 0).Check()
}

// Keycode resolves a keysym name to the first matching keycode
func (c *X11Client) Keycode(keysym string) (xproto.Keycode, error) {
	keycodes := keybind.StrToKeycodes(c.xu, keysym)
	if len(keycodes) == 0 {
		return 0, fmt.Errorf("no keycode found for key: %s", keysym)
	}
	return keycodes[0], nil
}

// SendKey presses or releases a keycode
func (c *X11Client) SendKey(keycode xproto.Keycode, press bool) error {
	eventType := byte(xproto.KeyRelease)
	if press {
		eventType = xproto.KeyPress
	}
	if err := xtest.FakeInputChecked(c.conn, eventType, byte(keycode), 0, c.screen.Root, 0, 0, 0).Check(); err != nil {
		return fmt.Errorf("failed to send key event: %w", err)
	}
	c.conn.Sync()
	return nil
}

// charToKeyInfo maps a character to its X11 key string and shift requirement
type charToKeyInfo struct {
	keyStr     string
	needsShift bool
}

// mapCharToKey converts a character to its X11 key name and shift requirement
func mapCharToKey(char rune) charToKeyInfo {
	if char >= 'A' && char <= 'Z' {
		return charToKeyInfo{keyStr: strings.ToLower(string(char)), needsShift: true}
	}
	if shiftChar, ok := shiftChars[char]; ok {
		return charToKeyInfo{keyStr: shiftChar, needsShift: true}
	}
	if punctChar, ok := punctuationChars[char]; ok {
		return charToKeyInfo{keyStr: punctChar}
	}

	switch char {
	case '\n':
		return charToKeyInfo{keyStr: "Return"}
	case '\t':
		return charToKeyInfo{keyStr: "Tab"}
	case ' ':
		return charToKeyInfo{keyStr: "space"}
	default:
		return charToKeyInfo{keyStr: string(char)}
	}
}

// keysymFor maps a canonical key name to an X11 keysym name
func keysymFor(key string) string {
	if name, ok := namedKeysyms[key]; ok {
		return name
	}
	if len(key) >= 2 && key[0] == 'f' && strings.Trim(key[1:], "0123456789") == "" {
		return "F" + key[1:]
	}
	if runes := []rune(key); len(runes) == 1 {
		return mapCharToKey(runes[0]).keyStr
	}
	return key
}

// TypeRunes types text one character at a time, holding shift where needed
func (c *X11Client) TypeRunes(ctx context.Context, text string, delay time.Duration) error {
	var shift xproto.Keycode
	if kc, err := c.Keycode("Shift_L"); err == nil {
		shift = kc
	}

	for _, char := range text {
		if err := ctx.Err(); err != nil {
			return err
		}

		info := mapCharToKey(char)
		keycode, err := c.Keycode(info.keyStr)
		if err != nil {
			logger.Debug("No keycode found for character", "char", string(char), "keyStr", info.keyStr)
			continue
		}

		if info.needsShift && shift != 0 {
			_ = xtest.FakeInput(c.conn, xproto.KeyPress, byte(shift), 0, c.screen.Root, 0, 0, 0)
		}
		_ = xtest.FakeInput(c.conn, xproto.KeyPress, byte(keycode), 0, c.screen.Root, 0, 0, 0)
		_ = xtest.FakeInput(c.conn, xproto.KeyRelease, byte(keycode), 0, c.screen.Root, 0, 0, 0)
		if info.needsShift && shift != 0 {
			_ = xtest.FakeInput(c.conn, xproto.KeyRelease, byte(shift), 0, c.screen.Root, 0, 0, 0)
		}
		c.conn.Sync()
		time.Sleep(delay)
	}

	return nil
}
