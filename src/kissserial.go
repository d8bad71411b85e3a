package m17

/*------------------------------------------------------------------
 *
 * Purpose:   	Provide service to host applications via KISS
 *		protocol over a serial port or pseudo terminal.
 *
 * Description:	Some host applications can only talk to a TNC over a
 *		serial device. A real serial port covers the hardware
 *		TNC replacement case; a pseudo terminal lets a local
 *		application open what looks like a serial port while
 *		the modem runs in this process.
 *
 *		The pseudo terminal name changes from run to run, so a
 *		symlink with a fixed name is created pointing at it.
 *
 *		Unlike the TCP listener there is only one potential
 *		client, so bytes are pumped straight through in both
 *		directions with no fan-out.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"github.com/pkg/term"
)

/*
 * Symlink to pseudo terminal name which changes.
 */

const TMP_KISSTNC_SYMLINK = "/tmp/kisstnc"

// SerialKissEndpoint serves KISS over a real serial port.
type SerialKissEndpoint struct {
	port *term.Term
	name string
}

func NewSerialKissEndpoint(devicename string, baud int) (*SerialKissEndpoint, error) {
	var port, err = term.Open(devicename, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", devicename, err)
	}

	switch baud {
	case 0: /* Leave it alone. */
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		port.SetSpeed(baud)
	default:
		log.Error("unsupported serial speed, using 9600", "baud", baud)
		port.SetSpeed(9600)
	}

	return &SerialKissEndpoint{port: port, name: devicename}, nil
}

// Serve pumps KISS bytes between the serial port and the modem until
// either side ends.
func (e *SerialKissEndpoint) Serve(modem io.ReadWriter) error {
	log.Info("serving KISS on serial port", "device", e.name)
	return pump_kiss(e.port, modem)
}

func (e *SerialKissEndpoint) Close() error {
	return e.port.Close()
}

// PtyKissEndpoint serves KISS over a pseudo terminal, for host
// applications that insist on opening a serial device.
type PtyKissEndpoint struct {
	master  *os.File
	slave   *os.File
	symlink string
}

// NewPtyKissEndpoint creates the pseudo terminal and a fixed-name
// symlink to its slave side. An empty symlink path selects
// TMP_KISSTNC_SYMLINK; the application should open the symlink.
func NewPtyKissEndpoint(symlink string) (*PtyKissEndpoint, error) {
	var master, slave, err = pty.Open()
	if err != nil {
		return nil, fmt.Errorf("create pseudo terminal for KISS TNC: %w", err)
	}

	if symlink == "" {
		symlink = TMP_KISSTNC_SYMLINK
	}
	// A stale link from a previous run would make the Symlink fail.
	os.Remove(symlink)
	if err := os.Symlink(slave.Name(), symlink); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("create symlink %s: %w", symlink, err)
	}
	log.Info("created pseudo terminal for KISS TNC", "pty", slave.Name(), "symlink", symlink)

	return &PtyKissEndpoint{master: master, slave: slave, symlink: symlink}, nil
}

// Name returns the path of the slave side of the pseudo terminal.
func (e *PtyKissEndpoint) Name() string {
	return e.slave.Name()
}

// Serve pumps KISS bytes between the pseudo terminal and the modem
// until either side ends.
func (e *PtyKissEndpoint) Serve(modem io.ReadWriter) error {
	return pump_kiss(e.master, modem)
}

func (e *PtyKissEndpoint) Close() error {
	os.Remove(e.symlink)
	e.slave.Close()
	return e.master.Close()
}

// pump_kiss copies bytes both ways until one side fails, then returns
// the error from the side that ended, or nil on a clean end of stream.
func pump_kiss(device io.ReadWriter, modem io.ReadWriter) error {
	var errs = make(chan error, 2)

	go func() {
		var buf = make([]byte, 4096)
		for {
			var n, err = device.Read(buf)
			if n > 0 {
				if _, werr := modem.Write(buf[:n]); werr != nil {
					errs <- werr
					return
				}
			}
			if err != nil {
				errs <- err
				return
			}
		}
	}()

	go func() {
		var buf = make([]byte, MAX_KISS_LEN)
		for {
			var n, err = modem.Read(buf)
			if n > 0 {
				if _, werr := device.Write(buf[:n]); werr != nil {
					errs <- werr
					return
				}
			}
			if err != nil {
				errs <- err
				return
			}
		}
	}()

	var err = <-errs
	if err == io.EOF || err == os.ErrClosed {
		return nil
	}
	return err
}
