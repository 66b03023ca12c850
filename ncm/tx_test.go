package ncm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// scenario 6 from spec §8: transmitting while disconnected must fail
// without touching bulk-OUT.
func TestTransmit_NotConnected(t *testing.T) {
	port := newFakePort()
	inst := &Instance{Port: port, BulkOutEP: 0x02, MaxSegmentSize: defaultMaxSegmentSize}

	n, err := inst.Transmit(64)
	require.ErrorIs(t, err, ErrNotConnected)
	require.Zero(t, n)
	require.Empty(t, port.bulkWrites)
}

func TestTransmit_BuildsByteExactFrame(t *testing.T) {
	port := newFakePort()
	inst := &Instance{Port: port, BulkOutEP: 0x02, MaxSegmentSize: defaultMaxSegmentSize}
	inst.setConnected(true)

	payload := inst.EthTxBuf()[:60]
	for i := range payload {
		payload[i] = byte(i + 1)
	}

	n, err := inst.Transmit(len(payload))
	require.NoError(t, err)
	require.Equal(t, 92, n) // 12 (NTH) + 60 payload + 20 (NDP, 1 entry rounded)

	require.Len(t, port.bulkWrites, 1)
	sent := port.bulkWrites[0]
	require.Equal(t, []byte{'N', 'C', 'M', 'H'}, sent[0:4])
	require.Equal(t, payload, sent[16:16+60])

	entries, err := parseBlock(sent, len(sent))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, uint16(16), entries[0].Index)
	require.Equal(t, uint16(60), entries[0].Length)
}

func TestTransmit_SequenceIncrementsPerCall(t *testing.T) {
	port := newFakePort()
	inst := &Instance{Port: port, BulkOutEP: 0x02, MaxSegmentSize: defaultMaxSegmentSize}
	inst.setConnected(true)

	_, err := inst.Transmit(32)
	require.NoError(t, err)
	_, err = inst.Transmit(32)
	require.NoError(t, err)

	require.Len(t, port.bulkWrites, 2)
	require.Equal(t, []byte{0x00, 0x00}, port.bulkWrites[0][6:8])
	require.Equal(t, []byte{0x01, 0x00}, port.bulkWrites[1][6:8])
}
