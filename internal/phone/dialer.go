package phone

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
)

// ErrNoNumber is returned when Dial is called with an empty number.
var ErrNoNumber = errors.New("no phone number")

// SystemDialer opens tel: links with the desktop's URI handler and falls back
// to copying the number to the clipboard.
type SystemDialer struct {
	// Copied is set when the last Dial used the clipboard fallback.
	Copied bool

	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
	copy     func(string) error
	noCopy   func() bool
}

// NewSystemDialer returns a dialer wired to the host OS.
func NewSystemDialer() *SystemDialer {
	return &SystemDialer{
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Start()
		},
		copy:   clipboard.WriteAll,
		noCopy: func() bool { return clipboard.Unsupported },
	}
}

func opener() (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}

// CanDial reports whether a tel: handler or the clipboard is available.
func (d *SystemDialer) CanDial() bool {
	name, _ := opener()
	if _, err := d.lookPath(name); err == nil {
		return true
	}
	return !d.noCopy()
}

// Dial hands number to the system.
func (d *SystemDialer) Dial(ctx context.Context, number string) error {
	d.Copied = false
	if number == "" {
		return ErrNoNumber
	}
	name, args := opener()
	if _, err := d.lookPath(name); err == nil {
		if err := d.run(ctx, name, append(args, "tel:"+number)...); err == nil {
			return nil
		}
	}
	if d.noCopy() {
		return fmt.Errorf("dial %s: no tel handler or clipboard", number)
	}
	if err := d.copy(number); err != nil {
		return fmt.Errorf("copy number: %w", err)
	}
	d.Copied = true
	return nil
}
