package usb

import (
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"
)

const (
	sysfsDeviceDir = "/sys/bus/usb/devices"
)

func readSysfsAttrInt(devName, attrName string) (int, error) {
	fileName := fmt.Sprintf("%s/%s/%s", sysfsDeviceDir, devName, attrName)
	var err error
	var data []byte
	var value int64
	data, err = ioutil.ReadFile(fileName)
	if err != nil {
		return 0, err
	}
	strData := strings.Trim(string(data), "\n")
	value, err = strconv.ParseInt(strData, 10, 64)
	if err != nil {
		return 0, err
	}
	return int(value), nil
}

func getDeviceAddress(devName string) (int, int, error) {
	busNum, err := readSysfsAttrInt(devName, "busnum")
	if err != nil {
		return 0, 0, err
	}
	devNum, err := readSysfsAttrInt(devName, "devnum")
	if err != nil {
		return 0, 0, err
	}
	return busNum, devNum, nil
}

// readRawConfigDescriptor reads the raw bytes of the sysfs "descriptors"
// attribute: the device descriptor followed by the active configuration
// descriptor and everything nested under it (interfaces, endpoints, and any
// class-specific descriptors). Callers decode it with ReadDescriptors or
// ParseDescriptor, since only the caller knows which class-specific
// descriptor types (e.g. CDC functional descriptors) it cares about.
func readRawConfigDescriptor(devName string) ([]byte, error) {
	fileName := fmt.Sprintf("%s/%s/descriptors", sysfsDeviceDir, devName)
	return ioutil.ReadFile(fileName)
}

func EnumerateDevices() ([]*Device, error) {
	dirs, err := ioutil.ReadDir(sysfsDeviceDir)
	if err != nil {
		return nil, err
	}

	res := make([]*Device, 0, 10)

	for _, dir := range dirs {
		name := dir.Name()
		if strings.HasPrefix(name, "usb") ||
			strings.Contains(name, ":") {
			continue
		}
		raw, err := readRawConfigDescriptor(name)
		if err != nil {
			return nil, err
		}
		busNum, devNum, err := getDeviceAddress(name)
		if err != nil {
			return nil, err
		}
		device := &Device{
			BusNumber:           busNum,
			DeviceNumber:        devNum,
			Name:                name,
			RawConfigDescriptor: raw,
			fd:                  -1,
		}
		res = append(res, device)
	}
	return res, nil
}

func FindDevices(filter func(device *Device) bool) ([]*Device, error) {
	allDevices, err := EnumerateDevices()
	if err != nil {
		return nil, err
	}
	res := make([]*Device, 0, len(allDevices))
	for _, dev := range allDevices {
		if filter(dev) {
			res = append(res, dev)
		}
	}
	return res, nil
}
