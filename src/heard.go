package m17

/*------------------------------------------------------------------
 *
 * Purpose:   	Keep track of stations heard over the radio.
 *
 * Description:	Two related facilities live here.
 *
 *		HeardLog appends one CSV line per accepted link setup
 *		frame. Rather than saving raw frames, write separated
 *		properties for easy reading and later processing with
 *		a spreadsheet.
 *
 *		There are two alternatives:
 *
 *		  full path	- One file, rotate it yourself.
 *
 *		  directory	- Daily names are created there.
 *
 *		HeardStations is the in-memory list behind the log,
 *		useful for asking "when did I last hear that station?"
 *		without reparsing the file.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

const heard_csv_header = "utime,isotime,source,destination,mode,type,encryption,can\n"

// heard_time_format is the strftime pattern for the isotime column.
const heard_time_format = "%Y-%m-%dT%H:%M:%SZ"

// HeardLog writes one CSV line per accepted link setup frame.
// The zero value discards everything; use NewHeardLog.
type HeardLog struct {
	mu sync.Mutex

	daily_names bool
	path        string // directory when daily_names, else full file name

	fp         *os.File
	open_fname string // name of currently open file when daily_names

	now func() time.Time
}

/*------------------------------------------------------------------
 *
 * Name:	NewHeardLog
 *
 * Purpose:	Set up the heard log.
 *
 * Inputs:	path	- Log file name, or a directory in which
 *			  daily names will be created.
 *			  Empty string disables the feature.
 *
 * Description:	Whether path means "file" or "directory" is decided
 *		by looking at what is already there. A path that does
 *		not exist yet is taken as a file name; use an existing
 *		directory (or ".") for daily names.
 *
 *		The file is kept open between writes. We don't
 *		open/close for every new item.
 *
 *------------------------------------------------------------------*/

func NewHeardLog(path string) *HeardLog {
	var h = &HeardLog{now: time.Now}

	if len(path) == 0 {
		return h
	}

	var stat, statErr = os.Stat(path)
	if statErr == nil && stat.IsDir() {
		h.daily_names = true
	}
	h.path = path

	return h
}

/*------------------------------------------------------------------
 *
 * Name:	Record
 *
 * Purpose:	Save one accepted link setup frame to the log file.
 *
 * Inputs:	lsf	- The frame, already CRC checked by the caller.
 *
 * Description:	Opens the file on first use, writing a header suitable
 *		for importing into a spreadsheet if the file did not
 *		exist already. With daily names, the date is taken
 *		from UTC and a date change closes the old file.
 *
 *------------------------------------------------------------------*/

func (h *HeardLog) Record(lsf *LsfFrame) {
	if len(h.path) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var now = h.now().UTC()

	if h.daily_names {
		var fname = now.Format("2006-01-02.log")

		// Close current file if the date has changed.
		if h.fp != nil && fname != h.open_fname {
			h.close_locked()
		}

		if h.fp == nil {
			h.open_locked(filepath.Join(h.path, fname), fname)
		}
	} else if h.fp == nil {
		h.open_locked(h.path, "")
	}

	if h.fp == nil {
		return
	}

	var itime, itimeErr = strftime.Format(heard_time_format, now)
	if itimeErr != nil {
		itime = now.Format("2006-01-02T15:04:05Z")
	}

	var w = csv.NewWriter(h.fp)
	w.Write([]string{
		strconv.Itoa(int(now.Unix())), itime,
		address_text(lsf.Source()), address_text(lsf.Destination()),
		mode_text(lsf.Mode()), data_type_text(lsf.DataType()),
		encryption_text(lsf.EncryptionType()),
		strconv.Itoa(int(lsf.ChannelAccessNumber())),
	})
	w.Flush()

	if err := w.Error(); err != nil {
		log.Error("heard log write failed", "path", h.path, "error", err)
	}
}

func (h *HeardLog) open_locked(full_path string, fname string) {
	// See if the file already exists and is not empty.
	// This is used to write a header only on the first line.
	var stat, statErr = os.Stat(full_path)
	var already_there = statErr == nil && stat.Size() > 0

	var f, openErr = os.OpenFile(full_path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644)
	if openErr != nil {
		log.Error("can't open heard log for write", "path", full_path, "error", openErr)
		h.path = ""
		return
	}

	log.Info("opening heard log", "path", full_path)
	h.fp = f
	h.open_fname = fname

	if !already_there {
		fmt.Fprint(h.fp, heard_csv_header)
	}
}

// Close closes any open log file.
// Called when exiting or, with daily names, when the date changes.
func (h *HeardLog) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.close_locked()
}

func (h *HeardLog) close_locked() {
	if h.fp != nil {
		h.fp.Close()
		h.fp = nil
		h.open_fname = ""
	}
}

func address_text(a Address) string {
	if a.IsBroadcast() {
		return "BROADCAST"
	}
	if cs, err := a.Callsign(); err == nil {
		return cs
	}
	return fmt.Sprintf("%012X", uint64(a))
}

func mode_text(m Mode) string {
	if m == ModeStream {
		return "stream"
	}
	return "packet"
}

func data_type_text(d DataType) string {
	switch d {
	case DataTypeData:
		return "data"
	case DataTypeVoice:
		return "voice"
	case DataTypeVoiceAndData:
		return "voice+data"
	}
	return "reserved"
}

func encryption_text(e EncryptionType) string {
	switch e {
	case EncryptionScrambler:
		return "scrambler"
	case EncryptionAes:
		return "aes"
	case EncryptionOther:
		return "other"
	}
	return "none"
}

/*
 * Information for each station heard over the radio.
 */

type heard_station struct {
	source string // Callsign from the link setup source field.

	count int // Number of times heard.
	// Just something potentially interesting when looking at a dump.

	last_heard time.Time // Timestamp when last heard.

	last_destination string // Most recent destination.
}

// HeardStations is the in-memory list of stations heard.
// This gets updated from the receive side while being read from
// elsewhere so access goes through a mutex. Nothing gets deleted.
type HeardStations struct {
	mu       sync.Mutex
	stations map[string]*heard_station
	now      func() time.Time
}

func NewHeardStations() *HeardStations {
	return &HeardStations{
		stations: make(map[string]*heard_station),
		now:      time.Now,
	}
}

// Heard notes one reception of a link setup frame.
func (hs *HeardStations) Heard(lsf *LsfFrame) {
	var source = address_text(lsf.Source())

	hs.mu.Lock()
	defer hs.mu.Unlock()

	var s = hs.stations[source]
	if s == nil {
		s = &heard_station{source: source}
		hs.stations[source] = s
	}
	s.count++
	s.last_heard = hs.now()
	s.last_destination = address_text(lsf.Destination())
}

// LastHeard reports when a station was last heard, if ever.
func (hs *HeardStations) LastHeard(source string) (time.Time, bool) {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	var s = hs.stations[strings.ToUpper(source)]
	if s == nil {
		return time.Time{}, false
	}
	return s.last_heard, true
}

// HeardCount reports how many times a station has been heard.
func (hs *HeardStations) HeardCount(source string) int {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	var s = hs.stations[strings.ToUpper(source)]
	if s == nil {
		return 0
	}
	return s.count
}

// List returns the callsigns heard, most recent first.
func (hs *HeardStations) List() []string {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	var out = make([]*heard_station, 0, len(hs.stations))
	for _, s := range hs.stations {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *heard_station) int {
		return b.last_heard.Compare(a.last_heard)
	})

	var names = make([]string, len(out))
	for i, s := range out {
		names[i] = s.source
	}
	return names
}
