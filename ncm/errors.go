// Package ncm implements the CDC-NCM (Communications Device Class - Network
// Control Model) USB function driver: descriptor parsing, the class-specific
// control plane, the connect sequencer, and the bulk RX/TX engines that
// carry Ethernet frames inside NCM Transfer Blocks.
package ncm

import "errors"

// Connect-time errors. All are fatal: registration of the instance aborts.
var (
	ErrBadDescriptor = errors.New("ncm: malformed configuration descriptor")
	ErrMissingMAC    = errors.New("ncm: no Ethernet Networking Functional Descriptor found")
	ErrBadMAC        = errors.New("ncm: malformed MAC address string")
)

// Runtime errors.
var (
	// ErrNotConnected is returned by Transmit when the link is down.
	ErrNotConnected = errors.New("ncm: not connected")

	// ErrFraming covers a bad NTH16/NDP16 signature, header length, or
	// block length. The caller discards the current assembly buffer and
	// continues; it is not returned to any upstream caller.
	ErrFraming = errors.New("ncm: framing error")

	// ErrBufferOverflow means the RX assembly buffer filled without a
	// terminating short packet.
	ErrBufferOverflow = errors.New("ncm: rx assembly buffer overflow")

	// ErrTransportFatal names a non-recoverable transport error. The RX
	// engine restarts (re-acquires its instance) on such an error; rxRun
	// logs the underlying error and does not wrap it in this value.
	ErrTransportFatal = errors.New("ncm: fatal transport error")

	// ErrInstanceGone names the state of a class driver instance that has
	// been disconnected or never registered. FindInstance reports that
	// state by returning false, not this error.
	ErrInstanceGone = errors.New("ncm: instance not registered")
)
