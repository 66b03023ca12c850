package ncm

import (
	"context"
	"sync"

	usb "github.com/daedaluz/gousbncm"
)

// Match is the class-info match for CDC-NCM registration (spec §6):
// InterfaceClass=CDC(0x02), SubClass=NCM(0x0D), Protocol=NONE(0x00).
func Match(class usb.ClassCode, subClass usb.SubClass, protocol uint8) bool {
	return class == usb.ClassCodeCDCControl && subClass == usb.SubClassCDCNetworkControl && protocol == 0x00
}

// registry generalizes the original's process-wide singleton into a
// registry keyed by control-interface number, the straightforward
// multi-instance extension spec §9 calls out.
var (
	registryMu sync.Mutex
	registry   = map[uint8]*Instance{}
)

func registerInstance(inst *Instance) {
	registryMu.Lock()
	registry[inst.CtrlIntf] = inst
	registryMu.Unlock()
}

func unregisterInstance(ctrlIntf uint8) {
	registryMu.Lock()
	delete(registry, ctrlIntf)
	registryMu.Unlock()
}

// FindInstance looks up the instance registered for a control interface,
// the "find_class_instance" collaborator of spec §6.
func FindInstance(ctrlIntf uint8) (*Instance, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	inst, ok := registry[ctrlIntf]
	return inst, ok
}

// Attach runs the connect sequence, registers the resulting instance, and
// starts its dedicated RX task. It is the class driver's "connect"
// callback (spec §6).
func Attach(ctx context.Context, port Port, ctrlIntf uint8, rawConfigDescriptor []byte, hooks Hooks) (*Instance, error) {
	inst, err := Connect(port, ctrlIntf, rawConfigDescriptor, hooks)
	if err != nil {
		return nil, err
	}
	registerInstance(inst)

	rxCtx, cancel := context.WithCancel(ctx)
	inst.cancelRX = cancel
	go RunRX(rxCtx, func() (*Instance, bool) {
		return FindInstance(ctrlIntf)
	})

	return inst, nil
}

// Detach is the class driver's "disconnect" callback (spec §6/§4.7): it
// unregisters the instance before tearing it down, so a racing RX restart
// observes the instance gone and terminates rather than reconnecting to a
// half-torn-down instance.
func Detach(inst *Instance) {
	unregisterInstance(inst.CtrlIntf)
	inst.Disconnect()
}
