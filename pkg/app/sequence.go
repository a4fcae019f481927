package app

// Sequencer hands out strictly increasing (mod 16) application sequence
// numbers for one association's solicited requests. The sequence is
// gapless modulo 16.
type Sequencer struct {
	next uint8
}

func (s *Sequencer) Next() uint8 {
	v := s.next & 0x0F
	s.next = (s.next + 1) & 0x0F
	return v
}

// UnsolicitedSequencer is the outstation's independent sequence counter
// for UNSOLICITED_RESPONSE fragments, kept separate from the solicited
// Sequencer.
type UnsolicitedSequencer struct {
	next uint8
}

func (s *UnsolicitedSequencer) Next() uint8 {
	v := s.next & 0x0F
	s.next = (s.next + 1) & 0x0F
	return v
}
