// Package notify raises user-visible alerts. The recorder runs
// headless, so notifications are its only interactive surface.
package notify

import (
	"github.com/gen2brain/beeep"

	"deskmic/log"
)

type Notifier interface {
	Notify(title, body string)
}

// Toast shows an OS notification; delivery failure degrades to the
// diagnostics log.
type Toast struct{}

func (Toast) Notify(title, body string) {
	if err := beeep.Notify(title, body, ""); err != nil {
		log.Warnf("notification failed (%s): %v", title, err)
	}
}

// Nop discards notifications; used in tests and the headless test mode.
type Nop struct{}

func (Nop) Notify(title, body string) {}

// Func adapts a function to the Notifier interface.
type Func func(title, body string)

func (f Func) Notify(title, body string) { f(title, body) }
