package ncm

import "encoding/binary"

const (
	sigNTH16 uint32 = 0x484D434E // "NCMH"
	sigNDP16v0 uint32 = 0x304D434E // "NCM0"
	sigNDP16v1 uint32 = 0x314D434E // "NCM1"

	nth16Length = 12
	ndp16HeaderLength = 8
	datagramEntryLength = 4
)

// NTH16 is the 12-byte NCM Transfer Header.
type NTH16 struct {
	Signature    uint32
	HeaderLength uint16
	Sequence     uint16
	BlockLength  uint16
	NdpIndex     uint16
}

func decodeNTH16(buf []byte) NTH16 {
	return NTH16{
		Signature:    binary.LittleEndian.Uint32(buf[0:4]),
		HeaderLength: binary.LittleEndian.Uint16(buf[4:6]),
		Sequence:     binary.LittleEndian.Uint16(buf[6:8]),
		BlockLength:  binary.LittleEndian.Uint16(buf[8:10]),
		NdpIndex:     binary.LittleEndian.Uint16(buf[10:12]),
	}
}

func (h NTH16) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Signature)
	binary.LittleEndian.PutUint16(buf[4:6], h.HeaderLength)
	binary.LittleEndian.PutUint16(buf[6:8], h.Sequence)
	binary.LittleEndian.PutUint16(buf[8:10], h.BlockLength)
	binary.LittleEndian.PutUint16(buf[10:12], h.NdpIndex)
}

// DatagramEntry is one {index, length} pair in an NDP16 entry table.
type DatagramEntry struct {
	Index  uint16
	Length uint16
}

// NDP16 is the datagram pointer table: an 8-byte header followed by entries.
type NDP16 struct {
	Signature    uint32
	Length       uint16
	NextNdpIndex uint16
	Entries      []DatagramEntry
}

func isNDP16Signature(sig uint32) bool {
	return sig == sigNDP16v0 || sig == sigNDP16v1 || sig == sigNTH16
}

// decodeNDP16 reads an NDP16 table starting at buf[0]. Entries that ndp.Length
// declares but that lie past the end of buf are not read.
func decodeNDP16(buf []byte) (NDP16, error) {
	if len(buf) < ndp16HeaderLength {
		return NDP16{}, ErrFraming
	}
	ndp := NDP16{
		Signature:    binary.LittleEndian.Uint32(buf[0:4]),
		Length:       binary.LittleEndian.Uint16(buf[4:6]),
		NextNdpIndex: binary.LittleEndian.Uint16(buf[6:8]),
	}
	if !isNDP16Signature(ndp.Signature) {
		return NDP16{}, ErrFraming
	}
	if int(ndp.Length) < ndp16HeaderLength {
		return NDP16{}, ErrFraming
	}
	tableLength := int(ndp.Length)
	if tableLength > len(buf) {
		tableLength = len(buf)
	}
	count := (tableLength - ndp16HeaderLength) / datagramEntryLength
	ndp.Entries = make([]DatagramEntry, 0, count)
	for i := 0; i < count; i++ {
		off := ndp16HeaderLength + i*datagramEntryLength
		idx := binary.LittleEndian.Uint16(buf[off : off+2])
		ln := binary.LittleEndian.Uint16(buf[off+2 : off+4])
		ndp.Entries = append(ndp.Entries, DatagramEntry{Index: idx, Length: ln})
	}
	return ndp, nil
}

func (n NDP16) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], n.Signature)
	binary.LittleEndian.PutUint16(buf[4:6], n.Length)
	binary.LittleEndian.PutUint16(buf[6:8], n.NextNdpIndex)
	for i, e := range n.Entries {
		off := ndp16HeaderLength + i*datagramEntryLength
		binary.LittleEndian.PutUint16(buf[off:off+2], e.Index)
		binary.LittleEndian.PutUint16(buf[off+2:off+4], e.Length)
	}
}

func alignUp4(n int) int {
	return (n + 3) &^ 3
}

// parseBlock validates a fully assembled NTB of length blockLen starting at
// buf[0] and returns the set of {index,length} datagram entries an RX
// caller should deliver to the upstream sink.
//
// Validation per RX Engine §4.5: NTH16 signature/header length/block length
// must all match before the NDP is even consulted.
func parseBlock(buf []byte, blockLen int) ([]DatagramEntry, error) {
	if blockLen < nth16Length || blockLen > len(buf) {
		return nil, ErrFraming
	}
	hdr := decodeNTH16(buf[:nth16Length])
	if hdr.Signature != sigNTH16 || hdr.HeaderLength != nth16Length || int(hdr.BlockLength) != blockLen {
		return nil, ErrFraming
	}
	if int(hdr.NdpIndex) >= blockLen {
		return nil, ErrFraming
	}
	ndp, err := decodeNDP16(buf[hdr.NdpIndex:blockLen])
	if err != nil {
		return nil, err
	}
	result := make([]DatagramEntry, 0, len(ndp.Entries))
	for _, e := range ndp.Entries {
		if e.Index == 0 || e.Length == 0 {
			continue
		}
		if int(e.Index)+int(e.Length) > blockLen {
			return nil, ErrFraming
		}
		result = append(result, e)
	}
	return result, nil
}

// buildFrame lays out a minimal two-NDP single-datagram NTB16 around the
// bytes already written at buf[16:16+buflen] by the caller, per TX Engine
// §4.6. It returns the total block length; buf must be large enough to hold
// blockLength bytes (16 + align_up(buflen,4) + 32).
func buildFrame(buf []byte, buflen int, sequence uint16) int {
	const dataOffset = 16
	dataAligned := alignUp4(buflen)
	firstNdp := dataOffset + dataAligned
	secondNdp := firstNdp + 16
	blockLength := secondNdp + 16

	hdr := NTH16{
		Signature:    sigNTH16,
		HeaderLength: nth16Length,
		Sequence:     sequence,
		BlockLength:  uint16(blockLength),
		NdpIndex:     uint16(firstNdp),
	}
	hdr.encode(buf[0:nth16Length])

	for i := buflen; i < dataAligned; i++ {
		buf[dataOffset+i] = 0
	}
	for i := firstNdp; i < firstNdp+32; i++ {
		buf[i] = 0
	}

	entry := DatagramEntry{Index: dataOffset, Length: uint16(buflen)}
	first := NDP16{
		Signature:    sigNDP16v0,
		Length:       16,
		NextNdpIndex: uint16(secondNdp),
		Entries:      []DatagramEntry{entry},
	}
	first.encode(buf[firstNdp : firstNdp+16])

	second := NDP16{
		Signature:    sigNDP16v0,
		Length:       16,
		NextNdpIndex: 0,
		Entries:      []DatagramEntry{entry},
	}
	second.encode(buf[secondNdp : secondNdp+16])

	return blockLength
}
