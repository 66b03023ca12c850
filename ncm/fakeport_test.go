package ncm

import (
	"context"
	"sync"

	usb "github.com/daedaluz/gousbncm"
)

// fakeTransfer is a completed-or-controllable usb.AsyncTransfer for tests
// that never touch real hardware.
type fakeTransfer struct {
	mu        sync.Mutex
	n         int
	err       error
	done      chan struct{}
	cancelled bool
}

func newFakeTransfer() *fakeTransfer {
	return &fakeTransfer{done: make(chan struct{})}
}

func (f *fakeTransfer) complete(n int, err error) {
	f.mu.Lock()
	f.n, f.err = n, err
	f.mu.Unlock()
	close(f.done)
}

func (f *fakeTransfer) Wait(ctx context.Context) (int, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.n, f.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *fakeTransfer) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelled {
		return
	}
	f.cancelled = true
	select {
	case <-f.done:
	default:
		f.n, f.err = 0, context.Canceled
		close(f.done)
	}
}

// fakePort is a minimal, scriptable ncm.Port used by the sequencer, RX and
// TX tests in place of a real *usb.Device.
type fakePort struct {
	mu sync.Mutex

	strings map[uint8]string

	ctrlCalls []ctrlCall
	ctrlErr   error
	ntbParams []byte

	bulkWrites [][]byte
	bulkErr    error

	altSettings map[uint32]uint32

	rxQueue []*fakeTransfer
}

type ctrlCall struct {
	typ   usb.RequestType
	req   uint8
	value uint16
	index uint16
}

func newFakePort() *fakePort {
	return &fakePort{
		strings:     map[uint8]string{},
		altSettings: map[uint32]uint32{},
	}
}

func (p *fakePort) Ctrl(typ usb.RequestType, req uint8, value uint16, index uint16, payload []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctrlCalls = append(p.ctrlCalls, ctrlCall{typ, req, value, index})
	if p.ctrlErr != nil {
		return 0, p.ctrlErr
	}
	if req == reqGetNtbParameters && len(p.ntbParams) > 0 {
		n := copy(payload, p.ntbParams)
		return n, nil
	}
	return len(payload), nil
}

func (p *fakePort) Bulk(ep uint8, data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bulkErr != nil {
		return 0, p.bulkErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	p.bulkWrites = append(p.bulkWrites, cp)
	return len(data), nil
}

func (p *fakePort) SubmitBulkIn(ep uint8, buf []byte) (usb.AsyncTransfer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rxQueue) == 0 {
		return newFakeTransfer(), nil
	}
	t := p.rxQueue[0]
	p.rxQueue = p.rxQueue[1:]
	return t, nil
}

func (p *fakePort) SubmitInterruptIn(ep uint8, buf []byte) (usb.AsyncTransfer, error) {
	return newFakeTransfer(), nil
}

func (p *fakePort) ClearHalt(ep uint8) error {
	return nil
}

func (p *fakePort) SetAltSetting(iface, setting uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.altSettings[iface] = setting
	return nil
}

func (p *fakePort) GetStringDescriptor(idx uint8, languageID uint16) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.strings[idx], nil
}

var _ Port = (*fakePort)(nil)
