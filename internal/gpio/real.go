//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	log "github.com/echocat/slf4g"
	"github.com/warthog618/go-gpiocdev"
)

// RealButton watches a button wired between a GPIO pin and ground.
type RealButton struct {
	chip    *gpiocdev.Chip
	line    *gpiocdev.Line
	presses chan time.Time

	mu     sync.Mutex
	closed bool
}

// NewRealButton requests pin as a pulled-up input with falling edge detection.
func NewRealButton(pin int, debounce time.Duration) (*RealButton, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	b := &RealButton{
		chip:    chip,
		presses: make(chan time.Time, pressBuffer),
	}
	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithEventHandler(b.handle))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	b.line = line
	return b, nil
}

// handle runs on the gpiocdev watcher goroutine.
func (b *RealButton) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.presses <- time.Now():
	default:
		log.Debug("Button press dropped, previous press still pending.")
	}
}

// Presses implements Button.
func (b *RealButton) Presses() <-chan time.Time {
	return b.presses
}

// Close releases GPIO resources.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// before closing to ensure clean state for system shutdown/reboot.
func (b *RealButton) Close() error {
	var errs []error

	if b.line != nil {
		if err := b.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button pin: %w", err))
		}
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.presses)
	}
	b.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
