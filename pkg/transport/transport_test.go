package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reassembleAll(t *testing.T, segs [][]byte) []byte {
	t.Helper()
	r := NewReassembler(0)
	var got []byte
	for i, seg := range segs {
		frag, complete, err := r.Accept(seg)
		assert.NoError(t, err)
		if i == len(segs)-1 {
			assert.True(t, complete)
			got = frag
		} else {
			assert.False(t, complete)
		}
	}
	return got
}

func TestSegmentReassembleRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 249, 250, 2 * 249, 2*249 + 1, 600}
	for _, n := range sizes {
		frag := make([]byte, n)
		for i := range frag {
			frag[i] = byte(i)
		}
		segs := Segment(frag, 0)
		got := reassembleAll(t, segs)
		if n == 0 {
			assert.Empty(t, got)
		} else {
			assert.True(t, bytes.Equal(frag, got))
		}
	}
}

func TestSegmentSequenceWrapsModulo64(t *testing.T) {
	frag := make([]byte, MaxSegmentPayload*3)
	segs := Segment(frag, 62)
	assert.Len(t, segs, 3)
	assert.EqualValues(t, 62, decodeHeader(segs[0][0]).Seq)
	assert.EqualValues(t, 63, decodeHeader(segs[1][0]).Seq)
	assert.EqualValues(t, 0, decodeHeader(segs[2][0]).Seq)
}

func TestReassemblerRejectsMissingFIR(t *testing.T) {
	r := NewReassembler(0)
	h := Header{FIR: false, FIN: true, Seq: 0}
	_, _, err := r.Accept([]byte{h.encode(), 1, 2, 3})
	assert.ErrorIs(t, err, ErrTransportDiscontinuity)
}

func TestReassemblerRejectsSequenceGap(t *testing.T) {
	r := NewReassembler(0)
	h1 := Header{FIR: true, FIN: false, Seq: 5}
	_, complete, err := r.Accept([]byte{h1.encode(), 1})
	assert.NoError(t, err)
	assert.False(t, complete)

	h2 := Header{FIR: false, FIN: true, Seq: 7} // should be 6
	_, _, err = r.Accept([]byte{h2.encode(), 2})
	assert.ErrorIs(t, err, ErrTransportDiscontinuity)
}

func TestReassemblerRejectsUnexpectedFIRMidStream(t *testing.T) {
	r := NewReassembler(0)
	h1 := Header{FIR: true, FIN: false, Seq: 0}
	_, complete, err := r.Accept([]byte{h1.encode(), 1})
	assert.NoError(t, err)
	assert.False(t, complete)

	h2 := Header{FIR: true, FIN: true, Seq: 1}
	_, _, err = r.Accept([]byte{h2.encode(), 2})
	assert.ErrorIs(t, err, ErrTransportDiscontinuity)

	// the accumulation from the aborted fragment must not leak into the next one
	h3 := Header{FIR: true, FIN: true, Seq: 9}
	frag, complete, err := r.Accept([]byte{h3.encode(), 5})
	assert.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, []byte{5}, frag)
}

func TestReassemblerOverflow(t *testing.T) {
	r := NewReassembler(10)
	h1 := Header{FIR: true, FIN: false, Seq: 0}
	_, _, err := r.Accept(append([]byte{h1.encode()}, make([]byte, 8)...))
	assert.NoError(t, err)
	h2 := Header{FIR: false, FIN: false, Seq: 1}
	_, _, err = r.Accept(append([]byte{h2.encode()}, make([]byte, 8)...))
	assert.ErrorIs(t, err, ErrFragmentTooLarge)
}

func TestReassemblerResetsAfterCompletion(t *testing.T) {
	r := NewReassembler(0)
	h := Header{FIR: true, FIN: true, Seq: 0}
	frag, complete, err := r.Accept([]byte{h.encode(), 9, 9})
	assert.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, []byte{9, 9}, frag)

	h2 := Header{FIR: true, FIN: true, Seq: 0}
	frag2, complete2, err := r.Accept([]byte{h2.encode(), 1})
	assert.NoError(t, err)
	assert.True(t, complete2)
	assert.Equal(t, []byte{1}, frag2)
}
