package m17

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write_config(t *testing.T, text string) string {
	t.Helper()
	var path = filepath.Join(t.TempDir(), "m17.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestLoadConfigMinimal(t *testing.T) {
	cfg, err := LoadConfig(write_config(t, "callsign: VK7XT\n"))
	require.NoError(t, err)

	assert.Equal(t, "VK7XT", cfg.Callsign)
	assert.Equal(t, "null", cfg.Input.Kind)
	assert.Equal(t, "null", cfg.Output.Kind)
	assert.Equal(t, 8001, cfg.Kiss.TcpPort)
	assert.Equal(t, "none", cfg.Ptt.Kind)
	assert.Equal(t, uint8(63), cfg.Tx.Persistence)
	assert.False(t, cfg.Tx.FullDuplex)
}

func TestLoadConfigFull(t *testing.T) {
	cfg, err := LoadConfig(write_config(t, `
callsign: M17-ABC
input:
  kind: file
  path: /tmp/in.rrc
output:
  kind: file
  path: /tmp/out.rrc
kiss:
  tcp_port: 8010
  serial_device: /dev/ttyUSB1
  serial_baud: 115200
  pty: true
ptt:
  kind: serial
  device: /dev/ttyUSB0
  line: dtr
tx:
  tx_delay: 40
  persistence: 128
  full_duplex: true
heard_log: /var/log/m17/heard.csv
`))
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Input.Kind)
	assert.Equal(t, "/tmp/in.rrc", cfg.Input.Path)
	assert.Equal(t, 8010, cfg.Kiss.TcpPort)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Kiss.SerialDevice)
	assert.True(t, cfg.Kiss.Pty)
	assert.Equal(t, "serial", cfg.Ptt.Kind)
	assert.Equal(t, "dtr", cfg.Ptt.Line)
	assert.Equal(t, uint8(40), cfg.Tx.TxDelay)
	assert.Equal(t, uint8(128), cfg.Tx.Persistence)
	assert.True(t, cfg.Tx.FullDuplex)
	assert.Equal(t, "/var/log/m17/heard.csv", cfg.HeardLog)
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	var cases = []struct {
		name string
		text string
	}{
		{"missing callsign", "input:\n  kind: null\n"},
		{"bad callsign", "callsign: \"VK7!T\"\n"},
		{"unknown input kind", "callsign: VK7XT\ninput:\n  kind: alsa\n"},
		{"file input without path", "callsign: VK7XT\ninput:\n  kind: file\n"},
		{"unknown ptt kind", "callsign: VK7XT\nptt:\n  kind: vox\n"},
		{"serial ptt without device", "callsign: VK7XT\nptt:\n  kind: serial\n"},
		{"bad ptt line", "callsign: VK7XT\nptt:\n  kind: serial\n  device: /dev/ttyS0\n  line: cts\n"},
		{"gpio ptt without chip", "callsign: VK7XT\nptt:\n  kind: gpio\n  pin: 17\n"},
		{"tcp port out of range", "callsign: VK7XT\nkiss:\n  tcp_port: 70000\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(write_config(t, tc.text))
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPttConfigBuildsNullSwitch(t *testing.T) {
	var cfg = PttConfig{Kind: "none"}
	sw, err := cfg.NewPttSwitch()
	require.NoError(t, err)
	assert.NoError(t, sw.PttOn())
	assert.NoError(t, sw.PttOff())
	assert.NoError(t, sw.Close())
}
