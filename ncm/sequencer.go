package ncm

import (
	"fmt"
	"log"
	"time"
)

// Connect runs the full connect-time sequence (spec §4.3) against an
// already-opened Port and returns a configured Instance. It neither
// registers the instance nor starts the RX engine; Attach (the class
// driver's connect callback) does both once Connect returns successfully.
func Connect(port Port, ctrlIntf uint8, rawConfigDescriptor []byte, hooks Hooks) (*Instance, error) {
	cfg, err := parseConfiguration(rawConfigDescriptor, ctrlIntf)
	if err != nil {
		return nil, err
	}

	macStr, err := port.GetStringDescriptor(cfg.MACStringIndex, 0x0409)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMAC, err)
	}
	mac, err := parseMAC(macStr)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		Port:         port,
		Hooks:        hooks,
		CtrlIntf:     ctrlIntf,
		DataIntf:     cfg.DataIntf,
		IntEndpoint:  cfg.IntEndpoint,
		BulkInEP:     cfg.BulkInEP,
		BulkOutEP:    cfg.BulkOutEP,
		BulkInMaxPkt: cfg.BulkInMaxPkt,
		DataAltCount: cfg.DataAltCount,
		MAC:          mac,
	}

	// Step 2: toggle the data altsetting if more than one exists. Failures
	// are logged and ignored, matching usbh_cdc_ncm_connect's USB_LOG_WRN
	// on a failed usbh_set_interface.
	if cfg.DataAltCount > 1 {
		altN := uint32(cfg.DataAltCount - 1)
		if err := port.SetAltSetting(uint32(cfg.DataIntf), altN); err != nil {
			log.Printf("ncm: set altsetting %d failed (continuing): %v", altN, err)
		}
		if err := port.SetAltSetting(uint32(cfg.DataIntf), 0); err != nil {
			log.Printf("ncm: set altsetting 0 failed (continuing): %v", err)
		}
	}

	// Step 3: GET_NTB_PARAMETERS, clamped to safe defaults.
	params, err := getNTBParameters(port, ctrlIntf)
	if err != nil {
		log.Printf("ncm: get_ntb_parameters failed, using defaults: %v", err)
		params = NTBParameters{}
	}
	if params.InMaxSize == 0 || params.InMaxSize > RXMax {
		params.InMaxSize = RXMax
	}
	maxSeg := cfg.MaxSegmentSize
	if maxSeg == 0 || maxSeg > defaultMaxSegmentSize {
		maxSeg = defaultMaxSegmentSize
	}
	inst.Params = params
	inst.MaxSegmentSize = maxSeg

	// Step 4/5: optional setters, failures downgraded to warnings.
	if err := setCRCMode(port, ctrlIntf, false); err != nil {
		log.Printf("ncm: set_crc_mode failed (continuing): %v", err)
	}
	if err := setNTBFormat(port, ctrlIntf, false); err != nil {
		log.Printf("ncm: set_ntb_format failed (continuing): %v", err)
	}

	// Step 6: settle, re-enable the data interface. Failure is logged and
	// ignored, same as step 2.
	time.Sleep(21 * time.Millisecond)
	if cfg.DataAltCount > 1 {
		altN := uint32(cfg.DataAltCount - 1)
		if err := port.SetAltSetting(uint32(cfg.DataIntf), altN); err != nil {
			log.Printf("ncm: re-enable altsetting %d failed (continuing): %v", altN, err)
		}
	}

	// Step 7: packet filter, with its own retry policy.
	if err := setPacketFilter(port, ctrlIntf, DefaultPacketFilter); err != nil {
		log.Printf("ncm: set_ethernet_packet_filter failed (continuing): %v", err)
	}

	// Step 8: announce.
	inst.setConnected(true)
	inst.DeviceName = fmt.Sprintf("cdc-ncm%d", ctrlIntf)
	inst.Hooks.run(inst)

	return inst, nil
}
