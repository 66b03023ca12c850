package ncm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// scenario 1 from spec §8: minimum frame round-trip.
func TestBuildFrame_MinimumFrame(t *testing.T) {
	buf := make([]byte, TXMax)
	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i)
	}
	copy(buf[16:16+64], payload)

	blockLength := buildFrame(buf, 64, 0)
	require.Equal(t, 96, blockLength)

	require.Equal(t, []byte{'N', 'C', 'M', 'H'}, buf[0:4])
	require.Equal(t, []byte{0x0C, 0x00}, buf[4:6]) // header length 12
	require.Equal(t, []byte{0x00, 0x00}, buf[6:8]) // sequence 0
	require.Equal(t, []byte{0x60, 0x00}, buf[8:10]) // block length 96
	require.Equal(t, []byte{0x10, 0x00}, buf[10:12]) // ndp index 16

	require.Equal(t, payload, buf[16:80])

	firstNdp := buf[80:96]
	require.Equal(t, []byte{'N', 'C', 'M', '0'}, firstNdp[0:4])
	require.Equal(t, []byte{0x10, 0x00}, firstNdp[4:6]) // length 16
	require.Equal(t, []byte{0x20, 0x00}, firstNdp[6:8]) // next ndp = 32
	require.Equal(t, []byte{0x10, 0x00}, firstNdp[8:10]) // entry index 16
	require.Equal(t, []byte{0x40, 0x00}, firstNdp[10:12]) // entry length 64
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, firstNdp[12:16])
}

func TestBuildFrame_SecondNdpNextIndexZero(t *testing.T) {
	buf := make([]byte, TXMax)
	blockLength := buildFrame(buf, 64, 5)
	secondNdp := buf[96:112]
	require.Equal(t, []byte{'N', 'C', 'M', '0'}, secondNdp[0:4])
	require.Equal(t, []byte{0x00, 0x00}, secondNdp[6:8]) // next-ndp index 0
	require.Equal(t, 112, blockLength)
}

func TestParseBlock_Idempotence(t *testing.T) {
	buf := make([]byte, TXMax)
	payload := []byte("hello world, this is an ethernet frame")
	copy(buf[16:], payload)
	blockLength := buildFrame(buf, len(payload), 3)

	entries, err := parseBlock(buf, blockLength)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, uint16(16), entries[0].Index)
	require.Equal(t, uint16(len(payload)), entries[0].Length)
	require.Equal(t, payload, buf[entries[0].Index:int(entries[0].Index)+int(entries[0].Length)])
}

// scenario 2 from spec §8: RX single-datagram NTB.
func TestParseBlock_SingleDatagram(t *testing.T) {
	buf := make([]byte, 256)
	hdr := NTH16{Signature: sigNTH16, HeaderLength: 12, Sequence: 1, BlockLength: 140, NdpIndex: 128}
	hdr.encode(buf[0:12])
	ndp := NDP16{Signature: sigNDP16v0, Length: 16, NextNdpIndex: 0, Entries: []DatagramEntry{{Index: 12, Length: 100}}}
	ndp.encode(buf[128:144])

	entries, err := parseBlock(buf, 140)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, DatagramEntry{Index: 12, Length: 100}, entries[0])
}

// scenario 3 from spec §8: RX multi-datagram NTB.
func TestParseBlock_MultiDatagram(t *testing.T) {
	buf := make([]byte, 256)
	hdr := NTH16{Signature: sigNTH16, HeaderLength: 12, Sequence: 1, BlockLength: 200, NdpIndex: 160}
	hdr.encode(buf[0:12])
	ndp := NDP16{
		Signature:    sigNDP16v1,
		Length:       16,
		NextNdpIndex: 0,
		Entries: []DatagramEntry{
			{Index: 12, Length: 64},
			{Index: 80, Length: 80},
		},
	}
	ndp.encode(buf[160:176])

	entries, err := parseBlock(buf, 200)
	require.NoError(t, err)
	require.Equal(t, []DatagramEntry{{Index: 12, Length: 64}, {Index: 80, Length: 80}}, entries)
}

// scenario 4 from spec §8: RX bad signature.
func TestParseBlock_BadSignature(t *testing.T) {
	buf := make([]byte, 64)
	copy(buf[0:4], []byte("NCMX"))
	buf[4], buf[5] = 12, 0
	buf[8], buf[9] = 32, 0

	_, err := parseBlock(buf, 32)
	require.ErrorIs(t, err, ErrFraming)
}

func TestParseBlock_RejectsZeroEntries(t *testing.T) {
	buf := make([]byte, 64)
	hdr := NTH16{Signature: sigNTH16, HeaderLength: 12, Sequence: 0, BlockLength: 32, NdpIndex: 16}
	hdr.encode(buf[0:12])
	ndp := NDP16{Signature: sigNDP16v0, Length: 16, NextNdpIndex: 0, Entries: []DatagramEntry{{Index: 0, Length: 0}}}
	ndp.encode(buf[16:32])

	entries, err := parseBlock(buf, 32)
	require.NoError(t, err)
	require.Empty(t, entries)
}
