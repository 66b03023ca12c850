// Command usbncmd enumerates attached USB devices, attaches the CDC-NCM
// driver to the first matching interface it finds, and logs received
// Ethernet frames until it receives an interrupt signal. A device
// disconnect does not end it.
package main

import (
	"bytes"
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/daedaluz/gousbncm/ncm"
	usb "github.com/daedaluz/gousbncm"
)

func findCtrlInterface(rawConfigDescriptor []byte) (uint8, bool) {
	var ctrlIntf uint8
	var found bool
	_ = usb.ReadDescriptors(bytes.NewReader(rawConfigDescriptor), func(d usb.Descriptor) {
		if found {
			return
		}
		iface, ok := d.(*usb.InterfaceDescriptor)
		if !ok {
			return
		}
		if ncm.Match(iface.BInterfaceClass, iface.BInterfaceSubClass, iface.BInterfaceProtocol) {
			ctrlIntf = iface.BInterfaceNumber
			found = true
		}
	})
	return ctrlIntf, found
}

func main() {
	devices, err := usb.EnumerateDevices()
	if err != nil {
		log.Fatalf("enumerate devices: %v", err)
	}

	var dev *usb.Device
	var ctrlIntf uint8
	for _, d := range devices {
		intf, ok := findCtrlInterface(d.RawConfigDescriptor)
		if !ok {
			continue
		}
		dev, ctrlIntf = d, intf
		break
	}
	if dev == nil {
		log.Fatalf("no CDC-NCM device found")
	}

	if err := dev.Open(); err != nil {
		log.Fatalf("open %s: %v", dev.Name, err)
	}
	defer dev.Close()

	if driver, err := dev.GetDriver(uint32(ctrlIntf)); err == nil && driver != "" {
		if err := dev.DetachKernel(uint32(ctrlIntf)); err != nil {
			log.Printf("detach kernel driver %q: %v", driver, err)
		}
	}

	hooks := ncm.Hooks{
		Run: func(inst *ncm.Instance) {
			log.Printf("usbncmd: link up, mac=%x", inst.MAC)
			log.Printf("usbncmd: %s", inst.Params.String())
		},
		Stop: func(inst *ncm.Instance) {
			log.Printf("usbncmd: link down")
		},
		EthInput: func(inst *ncm.Instance, frame []byte) {
			log.Printf("usbncmd: rx %d bytes", len(frame))
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	inst, err := ncm.Attach(ctx, dev, ctrlIntf, dev.RawConfigDescriptor, hooks)
	if err != nil {
		log.Fatalf("attach: %v", err)
	}
	defer ncm.Detach(inst)

	<-ctx.Done()
}
