package ncm

import (
	"encoding/binary"
	"fmt"
	"log"
	"time"

	usb "github.com/daedaluz/gousbncm"
)

// CDC-NCM class-specific request codes (spec §4.2).
const (
	reqGetNtbParameters       = 0x80
	reqSetCrcMode             = 0x8A
	reqSetNtbFormat           = 0x84
	reqSetEthernetPacketFilter = 0x43
)

const (
	crcModeCRC16 = 0
	crcModeNone  = 1

	ntbFormat16 = 0
	ntbFormat32 = 1
)

func classRequestOut() usb.RequestType {
	return usb.RequestDirectionOut | usb.RequestTypeClass | usb.RequestRecipientInterface
}

func classRequestIn() usb.RequestType {
	return usb.RequestDirectionIn | usb.RequestTypeClass | usb.RequestRecipientInterface
}

// getNTBParameters issues GET_NTB_PARAMETERS and decodes the 28-byte result.
func getNTBParameters(port Port, ctrlIntf uint8) (NTBParameters, error) {
	buf := make([]byte, 28)
	n, err := port.Ctrl(classRequestIn(), reqGetNtbParameters, 0, uint16(ctrlIntf), buf)
	if err != nil {
		return NTBParameters{}, fmt.Errorf("get ntb parameters: %w", err)
	}
	if n < 28 {
		buf = buf[:n]
	}
	return decodeNTBParameters(buf), nil
}

func decodeNTBParameters(buf []byte) NTBParameters {
	var p NTBParameters
	get16 := func(off int) uint16 {
		if off+2 > len(buf) {
			return 0
		}
		return binary.LittleEndian.Uint16(buf[off : off+2])
	}
	get32 := func(off int) uint32 {
		if off+4 > len(buf) {
			return 0
		}
		return binary.LittleEndian.Uint32(buf[off : off+4])
	}
	p.FormatsSupported = get16(2)
	p.InMaxSize = get32(4)
	p.InDivisor = get16(8)
	p.InRemainder = get16(10)
	p.InAlignment = get16(12)
	p.OutMaxSize = get32(16)
	p.OutDivisor = get16(20)
	p.OutRemainder = get16(22)
	p.OutAlignment = get16(24)
	p.OutMaxDatagrams = get16(26)
	return p
}

func (p NTBParameters) String() string {
	return fmt.Sprintf("NTBParameters{formats=0x%04x inMax=%d inDiv=%d inRem=%d inAlign=%d outMax=%d outDiv=%d outRem=%d outAlign=%d outMaxDatagrams=%d}",
		p.FormatsSupported, p.InMaxSize, p.InDivisor, p.InRemainder, p.InAlignment,
		p.OutMaxSize, p.OutDivisor, p.OutRemainder, p.OutAlignment, p.OutMaxDatagrams)
}

// setCRCMode issues SET_CRC_MODE. Failure is never fatal (spec §4.2/§7):
// callers log and continue.
func setCRCMode(port Port, ctrlIntf uint8, noCRC bool) error {
	mode := uint16(crcModeCRC16)
	if noCRC {
		mode = crcModeNone
	}
	_, err := port.Ctrl(classRequestOut(), reqSetCrcMode, mode, uint16(ctrlIntf), nil)
	return err
}

// setNTBFormat issues SET_NTB_FORMAT. Failure is never fatal.
func setNTBFormat(port Port, ctrlIntf uint8, ntb32 bool) error {
	format := uint16(ntbFormat16)
	if ntb32 {
		format = ntbFormat32
	}
	_, err := port.Ctrl(classRequestOut(), reqSetNtbFormat, format, uint16(ctrlIntf), nil)
	return err
}

// setPacketFilter issues SET_ETHERNET_PACKET_FILTER with the retry policy
// from spec §4.2: one retry after 10ms on failure, two redundant resends at
// 10ms intervals on success (gadget-compatibility behavior carried forward
// unchanged, see SPEC_FULL §9).
func setPacketFilter(port Port, ctrlIntf uint8, filter uint16) error {
	send := func() error {
		_, err := port.Ctrl(classRequestOut(), reqSetEthernetPacketFilter, filter, uint16(ctrlIntf), nil)
		return err
	}
	err := send()
	if err != nil {
		time.Sleep(10 * time.Millisecond)
		err = send()
		if err != nil {
			return err
		}
	}
	for i := 0; i < 2; i++ {
		time.Sleep(10 * time.Millisecond)
		if err := send(); err != nil {
			log.Printf("ncm: redundant packet filter resend failed: %v", err)
		}
	}
	return nil
}
