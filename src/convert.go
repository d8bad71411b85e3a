package m17

/*------------------------------------------------------------------
 *
 * Purpose:	Bridge streams between the reflector UDP form and the
 *		RF frame form.
 *
 * Description:	A reflector Voice datagram carries the whole link
 *		setup in every message; on RF the same information is
 *		an LSF followed by stream frames that each carry one
 *		sixth of it in the LICH. Converting between the two is
 *		what lets a KISS host participate in reflector traffic
 *		without caring which side a stream came from.
 *
 *---------------------------------------------------------------*/

// VoiceToRf turns reflector Voice datagrams into the LSF and stream
// frames that would have been transmitted on RF, reconstructing the
// LICH rotation.
type VoiceToRf struct {
	lsf      *LsfFrame
	lich_cnt int
}

func NewVoiceToRf() *VoiceToRf {
	return &VoiceToRf{}
}

// Next converts one Voice datagram. When the embedded link setup
// differs from the previous datagram's this is a new transmission, so
// an LSF to send first is returned alongside the stream frame;
// otherwise the LSF is nil. End of stream resets the converter.
func (c *VoiceToRf) Next(voice *Voice) (*LsfFrame, StreamFrame) {
	var this_lsf = voice.LinkSetupFrame()
	var emit *LsfFrame
	if c.lsf == nil || *c.lsf != this_lsf {
		c.lsf = &this_lsf
		c.lich_cnt = 0
		emit = &this_lsf
	}
	var stream = StreamFrame{
		LichIdx:     uint8(c.lich_cnt),
		LichPart:    [5]byte(c.lsf[c.lich_cnt*5 : (c.lich_cnt+1)*5]),
		FrameNumber: voice.FrameNumber(),
		EndOfStream: voice.IsEndOfStream(),
		StreamData:  [16]byte(voice.Payload()),
	}
	c.lich_cnt = (c.lich_cnt + 1) % 6
	if voice.IsEndOfStream() {
		c.lsf = nil
	}
	return emit, stream
}

// RfToVoice merges RF link setup and stream frames into reflector
// Voice datagrams. Reuse one converter across transmissions so the
// stream ID changes whenever a new LSF arrives.
type RfToVoice struct {
	lsf       LsfFrame
	stream_id uint16
}

func NewRfToVoice(lsf LsfFrame) *RfToVoice {
	return &RfToVoice{lsf: lsf, stream_id: uint16(m17_crc(lsf[:28]))}
}

func (c *RfToVoice) ProcessLsf(lsf LsfFrame) {
	c.lsf = lsf
	c.stream_id++
}

func (c *RfToVoice) ProcessStream(stream *StreamFrame) *Voice {
	var v = NewVoice()
	v.SetStreamId(c.stream_id)
	v.SetFrameNumber(stream.FrameNumber)
	v.SetEndOfStream(stream.EndOfStream)
	v.SetPayload(stream.StreamData[:])
	v.SetLinkSetupFrame(&c.lsf)
	return v
}
