package ncm

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sys/unix"

	usb "github.com/daedaluz/gousbncm"
)

const (
	linkWaitAttempts = 20
	linkWaitInterval = 100 * time.Millisecond
	gadgetSettleWait = 200 * time.Millisecond

	babbleDelay = 100 * time.Millisecond
	otherErrorDelay = 20 * time.Millisecond
)

// rxOutcome is what rxRun does after a failed bulk-IN submission (spec §4.5
// step 2 / §7).
type rxOutcome int

const (
	// rxRetry covers STALL/IO/BABBLE: clear the halt and resubmit.
	rxRetry rxOutcome = iota
	// rxRestart covers any other transport error (e.g. ENODEV on a
	// physical disconnect the class driver hasn't been told about yet):
	// the engine re-acquires its instance and restarts.
	rxRestart
	// rxStop covers our own cancellation (Detach/Disconnect): terminate,
	// no restart.
	rxStop
)

// classifyRXError classifies a failed bulk-IN submission by the real urb
// status usb.Transfer surfaces as a *usb.TransferError. A context
// cancellation means this engine's own Detach/Disconnect path discarded the
// urb, which always stops the engine rather than restarting it.
func classifyRXError(ctx context.Context, err error) rxOutcome {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return rxStop
	}
	var terr *usb.TransferError
	if errors.As(err, &terr) {
		switch terr.Errno {
		case unix.EPIPE, unix.EIO, unix.EOVERFLOW:
			return rxRetry
		default:
			return rxRestart
		}
	}
	return rxRestart
}

// RunRX is the RX engine's dedicated task (spec §4.5). find looks up the
// currently registered instance for this control interface; it returns
// (nil, false) once the instance has been disconnected, at which point the
// task terminates instead of restarting.
func RunRX(ctx context.Context, find func() (*Instance, bool)) {
	for {
		inst, ok := find()
		if !ok {
			return
		}
		restart := inst.rxRun(ctx, find)
		if !restart {
			return
		}
	}
}

// rxRun waits for link-up, clears the bulk-IN halt, and runs the main RX
// loop until a fatal transport error, at which point it reports whether the
// caller should try to re-acquire the instance and restart.
func (inst *Instance) rxRun(ctx context.Context, find func() (*Instance, bool)) (restart bool) {
	inst.waitForLinkUp(ctx)
	time.Sleep(gadgetSettleWait)
	if err := inst.Port.ClearHalt(inst.BulkInEP); err != nil {
		log.Printf("ncm: clear_halt(bulk-in) ignored: %v", err)
	}

	transferSize := int(inst.BulkInMaxPkt)
	if transferSize == 0 {
		transferSize = 64
	}

	for {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		actual, err := inst.submitRX(ctx, transferSize)
		if err != nil {
			switch classifyRXError(ctx, err) {
			case rxStop:
				return false
			case rxRestart:
				log.Printf("ncm: fatal transport error, restarting: %v", err)
				inst.rxLength = 0
				return true
			case rxRetry:
				if err := inst.Port.ClearHalt(inst.BulkInEP); err != nil {
					log.Printf("ncm: clear_halt(bulk-in) after error ignored: %v", err)
				}
				delay := otherErrorDelay
				var terr *usb.TransferError
				if errors.As(err, &terr) && terr.Errno == unix.EOVERFLOW {
					delay = babbleDelay
				}
				time.Sleep(delay)
				inst.rxLength = 0
			}
			continue
		}

		inst.rxLength += actual
		if !blockComplete(inst.rxLength, inst.BulkInMaxPkt, actual, transferSize) {
			if inst.rxLength >= RXMax {
				log.Printf("ncm: rx assembly buffer overflow, restarting")
				inst.rxLength = 0
				return true
			}
			continue
		}

		entries, perr := parseBlock(inst.rxBuf[:], inst.rxLength)
		if perr != nil {
			log.Printf("ncm: rx framing error, discarding block: %v", perr)
			inst.rxLength = 0
			continue
		}
		for _, e := range entries {
			inst.Hooks.ethInput(inst, inst.rxBuf[e.Index:int(e.Index)+int(e.Length)])
		}
		inst.rxLength = 0
	}
}

// submitRX submits one bulk-IN transfer appended to the assembly buffer and
// blocks for its result.
func (inst *Instance) submitRX(ctx context.Context, transferSize int) (int, error) {
	dest := inst.rxBuf[inst.rxLength : inst.rxLength+transferSize]
	transfer, err := inst.Port.SubmitBulkIn(inst.BulkInEP, dest)
	if err != nil {
		return 0, err
	}
	return transfer.Wait(ctx)
}

// blockComplete implements spec §4.5 step 4: a block is complete when the
// total so far is not a multiple of the endpoint max packet size (a short
// terminating packet), or the last actual transfer was itself short.
func blockComplete(rxLength int, maxPacketSize uint16, actualLength, transferSize int) bool {
	if maxPacketSize != 0 && rxLength%int(maxPacketSize) != 0 {
		return true
	}
	return actualLength < transferSize
}

// waitForLinkUp polls connect status up to linkWaitAttempts times. If the
// link is still down after the last poll, whether the polls failed or
// reported link-down, it forces the link up and proceeds (spec §4.5).
func (inst *Instance) waitForLinkUp(ctx context.Context) {
	for i := 0; i < linkWaitAttempts; i++ {
		if inst.Connected() {
			return
		}
		if err := inst.pollNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(linkWaitInterval):
		}
	}
	if !inst.Connected() {
		log.Printf("ncm: link-up wait exhausted, forcing connected")
		inst.setConnected(true)
	}
}
