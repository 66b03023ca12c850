package ncm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildSampleConfigDescriptor constructs a minimal, synthetic configuration
// descriptor for a CDC-NCM function: one control interface (alt 0 only,
// carrying the Ethernet Networking Functional Descriptor and an
// interrupt-IN endpoint) and one data interface with two altsettings (alt 0
// with no endpoints, alt 1 with bulk IN/OUT).
func buildSampleConfigDescriptor() []byte {
	var buf []byte

	// control interface, altsetting 0
	buf = append(buf, 9, descTypeInterface, 0, 0, 1, 0x02, 0x0D, 0x00, 0)

	// CS_INTERFACE Ethernet Networking Functional Descriptor
	buf = append(buf, 13, descTypeCSInterface, cdcFuncDescEthernetNetworking,
		4, // iMACAddress string index
		0, 0, 0, 0, // bmEthernetStatistics
		0xEA, 0x05, // wMaxSegmentSize = 1514
		0, 0, // wNumberMCFilters
		0, // bNumberPowerFilters
	)

	// interrupt-IN endpoint on the control interface
	buf = append(buf, 7, descTypeEndpoint, 0x83, 0x03, 0x08, 0x00, 0x08)

	// data interface, altsetting 0: no endpoints
	buf = append(buf, 9, descTypeInterface, 1, 0, 0, 0x0A, 0x00, 0x00, 0)

	// data interface, altsetting 1: bulk IN + bulk OUT
	buf = append(buf, 9, descTypeInterface, 1, 1, 2, 0x0A, 0x00, 0x00, 0)
	buf = append(buf, 7, descTypeEndpoint, 0x82, 0x02, 0x40, 0x00, 0x00)
	buf = append(buf, 7, descTypeEndpoint, 0x02, 0x02, 0x40, 0x00, 0x00)

	return buf
}

func TestParseConfiguration(t *testing.T) {
	raw := buildSampleConfigDescriptor()
	cfg, err := parseConfiguration(raw, 0)
	require.NoError(t, err)

	require.Equal(t, uint8(4), cfg.MACStringIndex)
	require.Equal(t, uint16(1514), cfg.MaxSegmentSize)
	require.Equal(t, uint8(1), cfg.DataIntf)
	require.Equal(t, 2, cfg.DataAltCount)
	require.Equal(t, uint8(0x83), cfg.IntEndpoint)
	require.Equal(t, uint8(0x82), cfg.BulkInEP)
	require.Equal(t, uint8(0x02), cfg.BulkOutEP)
	require.Equal(t, uint16(64), cfg.BulkInMaxPkt)
}

func TestParseConfiguration_MissingMAC(t *testing.T) {
	raw := buildSampleConfigDescriptor()
	// Corrupt the functional descriptor subtype so it no longer matches.
	raw[10] = 0x00
	_, err := parseConfiguration(raw, 0)
	require.ErrorIs(t, err, ErrMissingMAC)
}

func TestParseMAC(t *testing.T) {
	mac, err := parseMAC("001122AABBCC")
	require.NoError(t, err)
	require.Equal(t, [6]byte{0x00, 0x11, 0x22, 0xAA, 0xBB, 0xCC}, mac)

	_, err = parseMAC("short")
	require.ErrorIs(t, err, ErrBadMAC)

	_, err = parseMAC("ZZ1122AABBCC")
	require.ErrorIs(t, err, ErrBadMAC)
}
