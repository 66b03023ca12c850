package ncm

import (
	usb "github.com/daedaluz/gousbncm"
)

// Port is the USB host collaborator the protocol engine depends on (spec
// §6's "USB host collaborator"), narrowed to exactly the operations this
// package uses. *usb.Device satisfies it structurally; tests substitute a
// fake so the sequencer, RX and TX logic can run without real hardware.
type Port interface {
	// Ctrl issues a synchronous control transfer.
	Ctrl(typ usb.RequestType, req uint8, value uint16, index uint16, payload []byte) (int, error)

	// Bulk issues a synchronous bulk transfer (used only by TX; RX uses
	// the cancellable async path).
	Bulk(ep uint8, data []byte) (int, error)

	// SubmitBulkIn and SubmitInterruptIn start a cancellable asynchronous
	// read. Cancelling the returned transfer is how disconnect aborts an
	// RX loop blocked on the kernel.
	SubmitBulkIn(ep uint8, buf []byte) (usb.AsyncTransfer, error)
	SubmitInterruptIn(ep uint8, buf []byte) (usb.AsyncTransfer, error)

	// ClearHalt clears a stalled endpoint.
	ClearHalt(ep uint8) error

	// SetAltSetting selects an alternate setting for an interface.
	SetAltSetting(iface, setting uint32) error

	// GetStringDescriptor reads and UTF-16LE-decodes a string descriptor.
	GetStringDescriptor(idx uint8, languageID uint16) (string, error)
}
