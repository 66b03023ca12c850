package ncm

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

const (
	// RXMax is the size of the RX assembly buffer. Configurable per spec
	// §3; 16 KiB covers the NTBs observed from real gadgets with headroom.
	RXMax = 16 * 1024

	// TXMax is the size of the TX buffer: max_segment_size rounded up to a
	// multiple of 4, plus 48 bytes of NTB framing (16-byte header area and
	// two 16-byte NDPs).
	TXMax = (1514+3)&^3 + 48

	defaultMaxSegmentSize = 1514

	// DefaultPacketFilter is DIRECTED | MULTICAST | BROADCAST.
	DefaultPacketFilter = 0x000E
)

// NTBParameters is the result of GET_NTB_PARAMETERS (28 bytes on the wire).
// Connect clamps InMaxSize to RXMax; the RX and TX engines read none of the
// fields. The structure is carried for diagnostics (String), matching the
// original driver's habit of logging the full structure.
type NTBParameters struct {
	FormatsSupported  uint16
	InMaxSize         uint32
	InDivisor         uint16
	InRemainder       uint16
	InAlignment       uint16
	reserved          uint16
	OutMaxSize        uint32
	OutDivisor        uint16
	OutRemainder      uint16
	OutAlignment      uint16
	OutMaxDatagrams   uint16
}

// Hooks is the capability record the upstream network stack supplies at
// driver registration (spec §6's weakly-linked "run"/"stop"/eth hooks). A
// nil field behaves as a no-op.
type Hooks struct {
	// Run is invoked once configuration completes.
	Run func(inst *Instance)
	// Stop is invoked on disconnect.
	Stop func(inst *Instance)
	// EthInput delivers a received Ethernet frame. The slice aliases the
	// RX buffer and is only valid until EthInput returns.
	EthInput func(inst *Instance, frame []byte)
}

func (h Hooks) run(inst *Instance) {
	if h.Run != nil {
		h.Run(inst)
	}
}

func (h Hooks) stop(inst *Instance) {
	if h.Stop != nil {
		h.Stop(inst)
	}
}

func (h Hooks) ethInput(inst *Instance, frame []byte) {
	if h.EthInput != nil {
		h.EthInput(inst, frame)
	}
}

// Instance is the per-device handle for one attached CDC-NCM function
// (spec §3). One Instance exists per connected device; the driver registry
// in driver.go plays the role of the original's process-wide singleton,
// generalized into a lookup by control-interface number.
type Instance struct {
	Port Port
	Hooks Hooks

	CtrlIntf uint8
	DataIntf uint8

	IntEndpoint   uint8
	BulkInEP      uint8
	BulkOutEP     uint8
	BulkInMaxPkt  uint16
	DataAltCount  int

	MAC             [6]byte
	MaxSegmentSize  uint16
	Params          NTBParameters

	DeviceName string

	connectStatus atomic.Bool
	speed         [8]byte

	bulkOutSequence uint32 // low 16 bits are the wire sequence

	txMu  sync.Mutex
	txBuf [TXMax]byte

	rxBuf    [RXMax]byte
	rxLength int

	cancelRX context.CancelFunc
}

// Connected reports the current link state.
func (inst *Instance) Connected() bool {
	return inst.connectStatus.Load()
}

func (inst *Instance) setConnected(v bool) {
	inst.connectStatus.Store(v)
}

// nextSequence returns the sequence number for the next transmitted NTB and
// advances the counter (spec: "increments by 1 per transmitted NTB,
// wrap-around permitted").
func (inst *Instance) nextSequence() uint16 {
	return uint16(atomic.AddUint32(&inst.bulkOutSequence, 1) - 1)
}

// Disconnect kills in-flight URBs, invokes the Stop hook if the instance was
// ever named, and clears the link status, the RX assembly length and the
// device name (spec §4.7). Endpoint, MAC and parameter fields are kept.
func (inst *Instance) Disconnect() {
	if inst.cancelRX != nil {
		inst.cancelRX()
	}
	if inst.DeviceName != "" {
		inst.Hooks.stop(inst)
	}
	inst.setConnected(false)
	inst.rxLength = 0
	inst.DeviceName = ""
	log.Printf("ncm: instance on ctrl_intf=%d disconnected", inst.CtrlIntf)
}
