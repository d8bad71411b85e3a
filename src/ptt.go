package m17

/*------------------------------------------------------------------
 *
 * Purpose:	Activate the output control line for push to talk (PTT).
 *
 * Description:	Traditionally this is done with the RTS signal of a
 *		serial port, with DTR as the common alternative for
 *		interfaces that wire it the other way. Single board
 *		computers usually drive the radio from a GPIO line
 *		instead, via the character device interface.
 *
 *		The soundmodem toggles the switch on PTT edges; a
 *		failed toggle is logged there rather than here so the
 *		modem keeps running either way.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// PttSwitch keys the transmitter on and off.
type PttSwitch interface {
	PttOn() error
	PttOff() error
	Close() error
}

// NullPtt is for receive-only setups and tests; it does nothing.
type NullPtt struct{}

func (NullPtt) PttOn() error  { return nil }
func (NullPtt) PttOff() error { return nil }
func (NullPtt) Close() error  { return nil }

// SerialPttLine selects which modem control signal keys the radio.
type SerialPttLine int

const (
	PTT_LINE_RTS SerialPttLine = iota
	PTT_LINE_DTR
)

// SerialPtt keys via the RTS or DTR line of a serial port.
type SerialPtt struct {
	file *os.File
	bit  int
}

func NewSerialPtt(device string, line SerialPttLine) (*SerialPtt, error) {
	var file, err = os.OpenFile(device, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("open PTT serial port %s: %w", device, err)
	}
	var bit = unix.TIOCM_RTS
	if line == PTT_LINE_DTR {
		bit = unix.TIOCM_DTR
	}
	var p = &SerialPtt{file: file, bit: bit}
	if err := p.PttOff(); err != nil {
		file.Close()
		return nil, err
	}
	return p, nil
}

func (p *SerialPtt) set(on bool) error {
	var fd = int(p.file.Fd())
	var status, err = unix.IoctlGetInt(fd, unix.TIOCMGET)
	if err != nil {
		return fmt.Errorf("read modem control lines: %w", err)
	}
	if on {
		status |= p.bit
	} else {
		status &= ^p.bit
	}
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCMSET, status); err != nil {
		return fmt.Errorf("set modem control lines: %w", err)
	}
	return nil
}

func (p *SerialPtt) PttOn() error  { return p.set(true) }
func (p *SerialPtt) PttOff() error { return p.set(false) }

func (p *SerialPtt) Close() error {
	var err = p.PttOff()
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// GpioPtt keys via a GPIO line, e.g. gpiochip0 line 17 on a
// Raspberry Pi. Active high unless inverted.
type GpioPtt struct {
	line   *gpiocdev.Line
	invert bool
}

func NewGpioPtt(chip string, line int, invert bool) (*GpioPtt, error) {
	var inactive = 0
	if invert {
		inactive = 1
	}
	var l, err = gpiocdev.RequestLine(chip, line,
		gpiocdev.AsOutput(inactive),
		gpiocdev.WithConsumer("m17 ptt"))
	if err != nil {
		return nil, fmt.Errorf("request GPIO %s line %d: %w", chip, line, err)
	}
	return &GpioPtt{line: l, invert: invert}, nil
}

func (p *GpioPtt) set(on bool) error {
	var value = 0
	if on != p.invert {
		value = 1
	}
	return p.line.SetValue(value)
}

func (p *GpioPtt) PttOn() error  { return p.set(true) }
func (p *GpioPtt) PttOff() error { return p.set(false) }

func (p *GpioPtt) Close() error {
	var err = p.PttOff()
	if cerr := p.line.Close(); err == nil {
		err = cerr
	}
	return err
}
