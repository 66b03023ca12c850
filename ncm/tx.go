package ncm

// EthTxBuf returns a writable slice into the TX buffer at offset 16, sized
// to MaxSegmentSize. The upstream writes its outgoing Ethernet frame there
// before calling Transmit (spec §6: eth_txbuf()).
func (inst *Instance) EthTxBuf() []byte {
	return inst.txBuf[16 : 16+int(inst.MaxSegmentSize)]
}

// Transmit builds a minimal two-NDP NTB16 around the buflen bytes the
// caller already wrote via EthTxBuf and submits it as a single bulk-OUT
// transfer (spec §4.6). Not reentrant: concurrent callers must serialize
// through the mutex, since the TX buffer is reused, matching the instance's
// single bulk-OUT URB slot.
func (inst *Instance) Transmit(buflen int) (int, error) {
	if !inst.Connected() {
		return 0, ErrNotConnected
	}

	inst.txMu.Lock()
	defer inst.txMu.Unlock()

	seq := inst.nextSequence()
	blockLength := buildFrame(inst.txBuf[:], buflen, seq)
	return inst.Port.Bulk(inst.BulkOutEP, inst.txBuf[:blockLength])
}
