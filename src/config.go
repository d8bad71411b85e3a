package m17

/*------------------------------------------------------------------
 *
 * Purpose:   	Read daemon configuration from a file.
 *
 * Description:	One YAML document configures the whole soundmodem:
 *		station identity, where samples come from and go to,
 *		which KISS endpoints to offer, how to key the radio
 *		and the channel access parameters handed to the TNC.
 *
 *		Everything has a usable default so a minimal file is
 *		just the callsign. Validation failures name the field
 *		so the user is not left guessing.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrConfig = errors.New("invalid configuration")

// Config is the top level daemon configuration.
type Config struct {
	// Callsign identifies this station; it is the default source
	// address for transmissions originated by the daemon.
	Callsign string `yaml:"callsign"`

	Input  InputConfig  `yaml:"input"`
	Output OutputConfig `yaml:"output"`
	Kiss   KissConfig   `yaml:"kiss"`
	Ptt    PttConfig    `yaml:"ptt"`
	Tx     TxConfig     `yaml:"tx"`

	HeardLog string `yaml:"heard_log"`
}

// InputConfig selects the 48 kHz sample source.
type InputConfig struct {
	// Kind is "null" or "file".
	Kind string `yaml:"kind"`
	// Path to a little-endian 16 bit sample file when kind is file.
	Path string `yaml:"path"`
}

// OutputConfig selects the 48 kHz sample sink.
type OutputConfig struct {
	// Kind is "null" or "file".
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// KissConfig selects the host-facing KISS endpoints. Any combination
// may be enabled at once.
type KissConfig struct {
	// TcpPort enables the TCP listener when non-zero.
	TcpPort int `yaml:"tcp_port"`
	// ServiceName overrides the DNS-SD announcement name.
	ServiceName string `yaml:"service_name"`
	// SerialDevice enables the serial endpoint when set.
	SerialDevice string `yaml:"serial_device"`
	SerialBaud   int    `yaml:"serial_baud"`
	// Pty enables the pseudo terminal endpoint.
	Pty bool `yaml:"pty"`
	// PtySymlink overrides the default symlink path.
	PtySymlink string `yaml:"pty_symlink"`
}

// PttConfig selects how the transmitter is keyed.
type PttConfig struct {
	// Kind is "none", "serial" or "gpio".
	Kind string `yaml:"kind"`
	// Device is the serial port for kind serial.
	Device string `yaml:"device"`
	// Line is "rts" or "dtr" for kind serial.
	Line string `yaml:"line"`
	// Chip and Pin name the GPIO line for kind gpio.
	Chip   string `yaml:"chip"`
	Pin    int    `yaml:"pin"`
	Invert bool   `yaml:"invert"`
}

// TxConfig carries the channel access parameters handed to the TNC.
type TxConfig struct {
	// TxDelay in units of 10 ms, matching the KISS command.
	TxDelay uint8 `yaml:"tx_delay"`
	// Persistence for p-persistent CSMA, 0 to 255.
	Persistence uint8 `yaml:"persistence"`
	FullDuplex  bool  `yaml:"full_duplex"`
}

// DefaultConfig returns the configuration used when a field is absent
// from the file.
func DefaultConfig() Config {
	return Config{
		Input:  InputConfig{Kind: "null"},
		Output: OutputConfig{Kind: "null"},
		Kiss:   KissConfig{TcpPort: 8001},
		Ptt:    PttConfig{Kind: "none", Line: "rts"},
		Tx:     TxConfig{Persistence: 63},
	}
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	var cfg = DefaultConfig()
	var data, err = os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read configuration: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Callsign == "" {
		return fmt.Errorf("%w: callsign is required", ErrConfig)
	}
	if _, err := ParseCallsign(c.Callsign); err != nil {
		return fmt.Errorf("%w: callsign %q: %v", ErrConfig, c.Callsign, err)
	}

	switch c.Input.Kind {
	case "null":
	case "file":
		if c.Input.Path == "" {
			return fmt.Errorf("%w: input kind \"file\" needs a path", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown input kind %q (want null or file)", ErrConfig, c.Input.Kind)
	}

	switch c.Output.Kind {
	case "null":
	case "file":
		if c.Output.Path == "" {
			return fmt.Errorf("%w: output kind \"file\" needs a path", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown output kind %q (want null or file)", ErrConfig, c.Output.Kind)
	}

	if c.Kiss.TcpPort < 0 || c.Kiss.TcpPort > 65535 {
		return fmt.Errorf("%w: kiss tcp_port %d out of range", ErrConfig, c.Kiss.TcpPort)
	}

	switch c.Ptt.Kind {
	case "none":
	case "serial":
		if c.Ptt.Device == "" {
			return fmt.Errorf("%w: ptt kind \"serial\" needs a device", ErrConfig)
		}
		if c.Ptt.Line != "rts" && c.Ptt.Line != "dtr" {
			return fmt.Errorf("%w: ptt line %q (want rts or dtr)", ErrConfig, c.Ptt.Line)
		}
	case "gpio":
		if c.Ptt.Chip == "" {
			return fmt.Errorf("%w: ptt kind \"gpio\" needs a chip, e.g. gpiochip0", ErrConfig)
		}
		if c.Ptt.Pin < 0 {
			return fmt.Errorf("%w: ptt pin %d out of range", ErrConfig, c.Ptt.Pin)
		}
	default:
		return fmt.Errorf("%w: unknown ptt kind %q (want none, serial or gpio)", ErrConfig, c.Ptt.Kind)
	}

	return nil
}

// NewPttSwitch builds the configured PTT switch.
func (c *PttConfig) NewPttSwitch() (PttSwitch, error) {
	switch c.Kind {
	case "none":
		return NullPtt{}, nil
	case "serial":
		var line = PTT_LINE_RTS
		if c.Line == "dtr" {
			line = PTT_LINE_DTR
		}
		return NewSerialPtt(c.Device, line)
	case "gpio":
		return NewGpioPtt(c.Chip, c.Pin, c.Invert)
	}
	return nil, fmt.Errorf("%w: unknown ptt kind %q", ErrConfig, c.Kind)
}

// NewSampleInput builds the configured sample source.
func (c *InputConfig) NewSampleInput() (SampleInput, error) {
	switch c.Kind {
	case "null":
		return NewNullInputSource(), nil
	case "file":
		return NewInputRrcFile(c.Path)
	}
	return nil, fmt.Errorf("%w: unknown input kind %q", ErrConfig, c.Kind)
}

// NewSampleOutput builds the configured sample sink.
func (c *OutputConfig) NewSampleOutput() (SampleOutput, error) {
	switch c.Kind {
	case "null":
		return NewNullOutputSink(), nil
	case "file":
		return NewOutputRrcFile(c.Path), nil
	}
	return nil, fmt.Errorf("%w: unknown output kind %q", ErrConfig, c.Kind)
}
