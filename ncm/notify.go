package ncm

import "context"

const (
	notifyNetworkConnection    = 0x00
	notifyConnectionSpeedChange = 0x2A

	intScratchSize = 16
)

// pollNotification submits one interrupt-IN transfer and applies its
// payload to the instance (spec §4.4). It blocks until the transfer
// completes or ctx is cancelled.
func (inst *Instance) pollNotification(ctx context.Context) error {
	buf := make([]byte, intScratchSize)
	transfer, err := inst.Port.SubmitInterruptIn(inst.IntEndpoint, buf)
	if err != nil {
		return err
	}
	n, err := transfer.Wait(ctx)
	if err != nil {
		return err
	}
	if n < 2 {
		return nil
	}
	switch buf[1] {
	case notifyNetworkConnection:
		if n < 3 {
			return nil
		}
		inst.setConnected(buf[2] != 0)
	case notifyConnectionSpeedChange:
		if n < 16 {
			return nil
		}
		copy(inst.speed[:], buf[8:16])
	}
	return nil
}
