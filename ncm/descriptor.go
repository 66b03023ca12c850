package ncm

import "fmt"

const (
	descTypeInterface  = 0x04
	descTypeEndpoint   = 0x05
	descTypeCSInterface = 0x24

	cdcFuncDescEthernetNetworking = 0x0F

	endpointDirectionIn = 0x80
	endpointTypeMask    = 0x03
	endpointTypeBulk    = 0x02
	endpointTypeIntr    = 0x03
)

// ConfigResult is everything the Descriptor Parser extracts from a raw
// configuration descriptor (spec §4.1).
type ConfigResult struct {
	DataIntf       uint8
	DataAltCount   int
	MACStringIndex uint8
	MaxSegmentSize uint16

	IntEndpoint  uint8
	BulkInEP     uint8
	BulkOutEP    uint8
	BulkInMaxPkt uint16
}

// parseConfiguration walks raw (the device's raw configuration descriptor
// bytes; a leading device descriptor, as in the sysfs "descriptors"
// attribute, is skipped like any other descriptor of an unhandled type) by
// advancing p += p[0], exactly as the original algorithm does, because the
// class-specific Ethernet Networking Functional Descriptor has no home in
// a type-keyed descriptor registry: it shares bDescriptorType 0x24 with
// every other CDC functional descriptor and is told apart only by the
// subtype byte at offset 2.
func parseConfiguration(raw []byte, ctrlIntf uint8) (*ConfigResult, error) {
	var (
		curIface       uint8
		haveMAC        bool
		macStringIndex uint8
		maxSegmentSize uint16
	)

	p := raw
	for len(p) > 0 && p[0] != 0 {
		if int(p[0]) > len(p) {
			return nil, ErrBadDescriptor
		}
		if len(p) < 2 {
			return nil, ErrBadDescriptor
		}
		switch p[1] {
		case descTypeInterface:
			if len(p) < 3 {
				return nil, ErrBadDescriptor
			}
			curIface = p[2]
		case descTypeCSInterface:
			if !haveMAC && curIface == ctrlIntf && len(p) >= 3 && p[2] == cdcFuncDescEthernetNetworking {
				if len(p) < 13 {
					return nil, ErrBadDescriptor
				}
				macStringIndex = p[3]
				maxSegmentSize = uint16(p[8]) | uint16(p[9])<<8
				haveMAC = true
			}
		}
		p = p[p[0]:]
	}
	if !haveMAC {
		return nil, ErrMissingMAC
	}

	dataIntf := ctrlIntf + 1
	altCount, intEP, bulkIn, bulkOut, bulkInMaxPkt, err := bindEndpoints(raw, ctrlIntf, dataIntf)
	if err != nil {
		return nil, err
	}

	return &ConfigResult{
		DataIntf:       dataIntf,
		DataAltCount:   altCount,
		MACStringIndex: macStringIndex,
		MaxSegmentSize: maxSegmentSize,
		IntEndpoint:    intEP,
		BulkInEP:       bulkIn,
		BulkOutEP:      bulkOut,
		BulkInMaxPkt:   bulkInMaxPkt,
	}, nil
}

// bindEndpoints resolves the control interface's altsetting-0 interrupt-IN
// endpoint, and the data interface's highest altsetting's bulk IN/OUT
// endpoints (spec §4.1: "if more than one altsetting exists, use the
// highest; the driver MUST support single-altsetting data interfaces by
// reading altsetting 0").
func bindEndpoints(raw []byte, ctrlIntf, dataIntf uint8) (altCount int, intEP, bulkIn, bulkOut uint8, bulkInMaxPkt uint16, err error) {
	var (
		curIface  uint8
		curAlt    uint8
		sawCtrl   bool
		highestAlt int = -1
	)

	altSeen := map[uint8]bool{}

	p := raw
	for len(p) > 0 && p[0] != 0 {
		if int(p[0]) > len(p) || len(p) < 2 {
			return 0, 0, 0, 0, 0, ErrBadDescriptor
		}
		switch p[1] {
		case descTypeInterface:
			if len(p) < 4 {
				return 0, 0, 0, 0, 0, ErrBadDescriptor
			}
			curIface = p[2]
			curAlt = p[3]
			if curIface == dataIntf {
				altSeen[curAlt] = true
				if int(curAlt) > highestAlt {
					highestAlt = int(curAlt)
				}
			}
		case descTypeEndpoint:
			if len(p) < 7 {
				return 0, 0, 0, 0, 0, ErrBadDescriptor
			}
			addr := p[2]
			attrs := p[3]
			maxPkt := uint16(p[4]) | uint16(p[5])<<8
			transferType := attrs & endpointTypeMask

			if curIface == ctrlIntf && curAlt == 0 && transferType == endpointTypeIntr {
				intEP = addr
				sawCtrl = true
			}
			if curIface == dataIntf && int(curAlt) == highestAlt && transferType == endpointTypeBulk {
				if addr&endpointDirectionIn != 0 {
					bulkIn = addr
					bulkInMaxPkt = maxPkt
				} else {
					bulkOut = addr
				}
			}
		}
		p = p[p[0]:]
	}

	if !sawCtrl {
		return 0, 0, 0, 0, 0, fmt.Errorf("%w: no interrupt-IN endpoint on control interface %d", ErrBadDescriptor, ctrlIntf)
	}
	if bulkIn == 0 || bulkOut == 0 {
		return 0, 0, 0, 0, 0, fmt.Errorf("%w: bulk endpoints not found on data interface %d altsetting %d", ErrBadDescriptor, dataIntf, highestAlt)
	}
	return len(altSeen), intEP, bulkIn, bulkOut, bulkInMaxPkt, nil
}

// parseMAC decodes a 12-character ASCII hex MAC address string (spec
// §4.1: "expect 12 ASCII hex characters (no separators)").
func parseMAC(s string) ([6]byte, error) {
	var mac [6]byte
	if len(s) != 12 {
		return mac, ErrBadMAC
	}
	for i := 0; i < 6; i++ {
		hi, ok1 := hexNibble(s[2*i])
		lo, ok2 := hexNibble(s[2*i+1])
		if !ok1 || !ok2 {
			return mac, ErrBadMAC
		}
		mac[i] = hi<<4 | lo
	}
	return mac, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
