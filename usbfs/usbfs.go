package usbfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

func ioctl(fd int, ioc uint32, arg interface{}) (int, error) {
	b := bytes.Buffer{}
	if err := binary.Write(&b, binary.LittleEndian, arg); err != nil {
		return -1, err
	}
	buff := b.Bytes()
	r, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ioc), uintptr(unsafe.Pointer(&buff[0])))
	if e != syscall.Errno(0) {
		return int(r), e
	}
	return int(r), nil
}

func GetDriver(fd int, iface uint32) (string, error) {
	data := &usbdevfs_getdriver{
		Interface: iface,
	}
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_getdriver), uintptr(unsafe.Pointer(data)))
	if e == syscall.Errno(0) {
		return data.String(), nil
	}
	return "", e
}

func GetConnectInfo(fd int) (uint8, error) {
	info := &usbdevfs_connectinfo{}
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_connectionfo), uintptr(unsafe.Pointer(info)))
	if e == syscall.Errno(0) {
		return info.Slow, nil
	}
	return 0, e
}

func SetInterface(fd int, iface, setting uint32) error {
	data := &usbdevfs_setinterface{
		Interface:  iface,
		AltSetting: setting,
	}
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_setinterface), uintptr(unsafe.Pointer(data)))
	if e == syscall.Errno(0) {
		return nil
	}
	return e
}

func ClaimInterface(fd, iface int) error {
	ifaceNum := uint32(iface)
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_claiminterface), uintptr(unsafe.Pointer(&ifaceNum)))
	if e == syscall.Errno(0) {
		return nil
	}
	return e
}

func ReleaseInterface(fd, iface int) error {
	ifaceNum := uint32(iface)
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_releaseinterface), uintptr(unsafe.Pointer(&ifaceNum)))
	if e == syscall.Errno(0) {
		return nil
	}
	return e
}

func Disconnect(fd int, iface uint32) error {
	data := usbdevfs_ioctl{
		Interface: int32(iface),
		IoctlCode: int32(ctl_usbdevfs_disconnect),
		Data:      0,
	}
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_ioctl), uintptr(unsafe.Pointer(&data)))
	if e == syscall.Errno(0) {
		return nil
	}
	return e
}

func Connect(fd int, iface uint32) error {
	data := usbdevfs_ioctl{
		Interface: int32(iface),
		IoctlCode: int32(ctl_usbdevfs_connect),
		Data:      0,
	}
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_ioctl), uintptr(unsafe.Pointer(&data)))
	if e == syscall.Errno(0) {
		return nil
	}
	return e
}

func ControlTransfer(fd int, typ uint8, request uint8, value uint16, index uint16, timeout uint32, payload []byte) (int, error) {
	data := &usbdevfs_ctrltransfer{
		RequestType: typ,
		Request:     request,
		Value:       value,
		Index:       index,
		Timeout:     timeout,
	}
	if payload != nil {
		data.Length = uint16(len(payload))
		data.Data = slicePtr(payload)
	}
	x, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_control), uintptr(unsafe.Pointer(data)))
	if e == syscall.Errno(0) {
		return int(x), nil
	}
	return int(x), e
}

func BulkTransfer(fd int, endpoint uint32, timeout uint32, payload []byte) (int, error) {
	data := &usbdevfs_bulktransfer{
		Endpoint: endpoint,
		Timeout:  timeout,
	}
	if payload != nil {
		data.Length = uint32(len(payload))
		data.Data = slicePtr(payload)
	}
	x, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_bulk), uintptr(unsafe.Pointer(data)))
	if e == syscall.Errno(0) {
		return int(x), nil
	}
	return int(x), e
}

// ClearHalt clears the halt/stall condition on an endpoint. Called by the RX
// engine after a STALL or BABBLE error, before resubmitting.
func ClearHalt(fd int, endpoint uint32) error {
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_clear_halt), uintptr(unsafe.Pointer(&endpoint)))
	if e == syscall.Errno(0) {
		return nil
	}
	return e
}

func ResetDevice(fd int) error {
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_reset), 0)
	if e == syscall.Errno(0) {
		return nil
	}
	return e
}

func GetCapabilities(fd int) (uint32, error) {
	var caps uint32
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_get_capabilities), uintptr(unsafe.Pointer(&caps)))
	if e == syscall.Errno(0) {
		return caps, nil
	}
	return 0, e
}

// SubmitURB submits an asynchronous bulk or interrupt transfer. The kernel
// owns buf until the urb is reaped or discarded; callers must keep it alive
// and must not touch it before Reap/Discard returns. The returned urb handle
// identifies this submission to DiscardURB.
func SubmitURB(fd int, transferType uint8, endpoint uint8, buf []byte, userContext uintptr) (uintptr, error) {
	urb := &usbdevfs_urb{
		Type:         transferType,
		Endpoint:     endpoint,
		BufferLength: int32(len(buf)),
		UserContext:  userContext,
	}
	if len(buf) > 0 {
		urb.Buffer = slicePtr(buf)
	}
	handle := uintptr(unsafe.Pointer(urb))
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_submiturb), handle)
	if e == syscall.Errno(0) {
		return handle, nil
	}
	return 0, e
}

// ReapURB blocks until a previously submitted urb completes and returns the
// handle SubmitURB gave it, its actual length, status and UserContext value.
func ReapURB(fd int) (handle uintptr, actualLength int, status int32, userContext uintptr, err error) {
	var urbPtr uintptr
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_reapurb), uintptr(unsafe.Pointer(&urbPtr)))
	if e != syscall.Errno(0) {
		return 0, 0, 0, 0, e
	}
	urb := (*usbdevfs_urb)(unsafe.Pointer(urbPtr))
	return urbPtr, int(urb.ActualLength), urb.Status, urb.UserContext, nil
}

// DiscardURB cancels a previously submitted, not-yet-reaped urb. The
// cancelled urb still needs to be reaped afterwards.
func DiscardURB(fd int, urbPtr uintptr) error {
	_, _, e := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(ctl_usbdevfs_discardurb), urbPtr)
	if e == syscall.Errno(0) {
		return nil
	}
	return e
}

func OpenDevice(busNumber, deviceNumber int) (int, error) {
	devPath := fmt.Sprintf("%s/%.3d/%.3d", usbDevPath, busNumber, deviceNumber)
	fd, err := unix.Open(devPath, unix.O_RDWR, 0)
	if err != nil {
		return -1, err
	}
	return fd, nil
}
