package ncm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnect_HappyPath(t *testing.T) {
	raw := buildSampleConfigDescriptor()
	port := newFakePort()
	port.strings[4] = "001122AABBCC"

	var ranHook bool
	hooks := Hooks{Run: func(inst *Instance) { ranHook = true }}

	inst, err := Connect(port, 0, raw, hooks)
	require.NoError(t, err)
	require.True(t, ranHook)
	require.True(t, inst.Connected())
	require.Equal(t, [6]byte{0x00, 0x11, 0x22, 0xAA, 0xBB, 0xCC}, inst.MAC)
	require.Equal(t, uint8(1), inst.DataIntf)
	require.Equal(t, uint8(0x83), inst.IntEndpoint)
	require.Equal(t, uint8(0x82), inst.BulkInEP)
	require.Equal(t, uint8(0x02), inst.BulkOutEP)
	require.Equal(t, uint16(1514), inst.MaxSegmentSize)

	// altsetting toggled to the highest then back to 0, then re-enabled.
	require.Equal(t, uint32(1), port.altSettings[1])
}

func TestConnect_MissingMACStringFails(t *testing.T) {
	raw := buildSampleConfigDescriptor()
	port := newFakePort()
	// string index 4 left unset -> GetStringDescriptor returns "".

	_, err := Connect(port, 0, raw, Hooks{})
	require.ErrorIs(t, err, ErrBadMAC)
}

func TestConnect_EmptyDescriptorPropagatesMissingMAC(t *testing.T) {
	port := newFakePort()
	_, err := Connect(port, 0, []byte{}, Hooks{})
	require.ErrorIs(t, err, ErrMissingMAC)
}

func TestConnect_SingleAltsettingDataInterface(t *testing.T) {
	// A data interface with only altsetting 0 (DataAltCount == 1): the
	// sequencer must not attempt to toggle altsettings at all.
	var buf []byte
	buf = append(buf, 9, descTypeInterface, 0, 0, 1, 0x02, 0x0D, 0x00, 0)
	buf = append(buf, 13, descTypeCSInterface, cdcFuncDescEthernetNetworking,
		4, 0, 0, 0, 0, 0xEA, 0x05, 0, 0, 0)
	buf = append(buf, 7, descTypeEndpoint, 0x83, 0x03, 0x08, 0x00, 0x08)
	buf = append(buf, 9, descTypeInterface, 1, 0, 2, 0x0A, 0x00, 0x00, 0)
	buf = append(buf, 7, descTypeEndpoint, 0x82, 0x02, 0x40, 0x00, 0x00)
	buf = append(buf, 7, descTypeEndpoint, 0x02, 0x02, 0x40, 0x00, 0x00)

	port := newFakePort()
	port.strings[4] = "AABBCCDDEEFF"

	inst, err := Connect(port, 0, buf, Hooks{})
	require.NoError(t, err)
	require.Equal(t, 1, inst.DataAltCount)
	require.Empty(t, port.altSettings)
}
