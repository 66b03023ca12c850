package usb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/daedaluz/gousbncm/usbfs"
)

// TransferError wraps a non-zero USBDEVFS urb status: a negative errno
// reported by the kernel for a completed transfer, e.g. -EPIPE for a STALL,
// -EOVERFLOW for a BABBLE overrun, -ENODEV when the device was physically
// unplugged. Callers branch on Errno to pick a recovery strategy (spec
// §4.5 step 2 / §7).
type TransferError struct {
	Status int32
	Errno  unix.Errno
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("usb: transfer failed: %v", e.Errno)
}

func (e *TransferError) Unwrap() error {
	return e.Errno
}

const (
	urbTypeIsochronous = 0
	urbTypeInterrupt   = 1
	urbTypeControl     = 2
	urbTypeBulk        = 3
)

// AsyncTransfer is a single asynchronous bulk or interrupt submission. Unlike
// Bulk/BulkTimeout it can be cancelled from another goroutine, which is what
// lets a disconnect abort an RX read that is blocked in the kernel.
type AsyncTransfer interface {
	// Wait blocks until the transfer completes, is cancelled, or ctx is
	// done, and returns the actual transfer length.
	Wait(ctx context.Context) (int, error)
	// Cancel discards the urb if it has not completed yet.
	Cancel()
}

// Transfer is the concrete AsyncTransfer backed by a usbfs urb.
type Transfer struct {
	dev     *Device
	handle  uintptr
	buf     []byte
	done    chan struct{}
	actual  int
	status  int32
	err     error
	reaped  bool
	mu      sync.Mutex
}

// SubmitBulkIn submits an asynchronous bulk-IN read into buf.
func (d *Device) SubmitBulkIn(ep uint8, buf []byte) (AsyncTransfer, error) {
	return d.submitAsync(urbTypeBulk, ep, buf)
}

// SubmitInterruptIn submits an asynchronous interrupt-IN read into buf, used
// by the notification poller.
func (d *Device) SubmitInterruptIn(ep uint8, buf []byte) (AsyncTransfer, error) {
	return d.submitAsync(urbTypeInterrupt, ep, buf)
}

func (d *Device) submitAsync(transferType uint8, ep uint8, buf []byte) (*Transfer, error) {
	ctxID := atomic.AddUint64(&d.transferSeq, 1)
	handle, err := usbfs.SubmitURB(d.fd, transferType, ep, buf, uintptr(ctxID))
	if err != nil {
		return nil, err
	}
	t := &Transfer{
		dev:    d,
		handle: handle,
		buf:    buf,
		done:   make(chan struct{}),
	}
	d.registerTransfer(t)
	return t, nil
}

// Wait blocks until the transfer completes, is cancelled, or ctx is done. If
// ctx is done first, the urb is discarded and Wait still blocks for the
// kernel to finish reaping it before returning context.Canceled.
func (t *Transfer) Wait(ctx context.Context) (int, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		t.Cancel()
		<-t.done
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.actual, t.err
}

// Cancel discards the urb if it has not completed yet. Safe to call more
// than once and safe to call after the transfer has already completed.
func (t *Transfer) Cancel() {
	_ = usbfs.DiscardURB(t.dev.fd, t.handle)
}

func (t *Transfer) complete(actual int, status int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reaped {
		return
	}
	t.reaped = true
	t.actual = actual
	t.status = status
	switch {
	case status == 0:
		t.err = nil
	case status == -int32(unix.ECONNRESET), status == -int32(unix.ENOENT):
		// DiscardURB'd by Cancel: the kernel reports the discard itself as
		// one of these two errnos depending on whether it raced completion.
		t.err = context.Canceled
	default:
		t.err = &TransferError{Status: status, Errno: unix.Errno(-status)}
	}
	close(t.done)
}

// registerTransfer records t under its urb handle and makes sure the
// device's single reap loop is running.
func (d *Device) registerTransfer(t *Transfer) {
	d.transferMu.Lock()
	if d.pendingTransfers == nil {
		d.pendingTransfers = make(map[uintptr]*Transfer)
	}
	d.pendingTransfers[t.handle] = t
	started := d.reapStarted
	d.reapStarted = true
	d.transferMu.Unlock()
	if !started {
		go d.reapLoop()
	}
}

// reapLoop is the single background goroutine per Device that drains
// completed urbs and dispatches them to their Transfer. USBDEVFS_REAPURB
// blocks, so this is the only legal way to wait on more than one in-flight
// async transfer on the same file descriptor.
func (d *Device) reapLoop() {
	for {
		handle, actual, status, _, err := usbfs.ReapURB(d.fd)
		if err != nil {
			d.transferMu.Lock()
			pending := d.pendingTransfers
			d.pendingTransfers = nil
			d.reapStarted = false
			d.transferMu.Unlock()
			for _, t := range pending {
				t.complete(0, -int32(unix.ENODEV))
			}
			return
		}
		d.transferMu.Lock()
		t, ok := d.pendingTransfers[handle]
		if ok {
			delete(d.pendingTransfers, handle)
		}
		empty := len(d.pendingTransfers) == 0
		if empty {
			d.reapStarted = false
		}
		d.transferMu.Unlock()
		if ok {
			t.complete(actual, status)
		}
		if empty {
			return
		}
	}
}
