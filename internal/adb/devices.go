package adb

import (
	"strings"

	goadb "github.com/basiooo/goadb"
	"github.com/pkg/errors"
)

// DeviceKind classifies how a device is attached
type DeviceKind string

const (
	DeviceKindUSB      DeviceKind = "usb"
	DeviceKindTCPIP    DeviceKind = "tcpip"
	DeviceKindEmulator DeviceKind = "emulator"
)

// Device is one row of `adb devices -l`
type Device struct {
	Serial string
	State  string
	Kind   DeviceKind
	Model  string
}

// KindOfSerial derives the attachment kind from the serial's shape
func KindOfSerial(serial string) DeviceKind {
	if strings.HasPrefix(serial, "emulator-") {
		return DeviceKindEmulator
	}
	if strings.Contains(serial, ":") {
		return DeviceKindTCPIP
	}
	return DeviceKindUSB
}

// ListDevices enumerates attached devices via `adb devices -l`
func (a *Adb) ListDevices() ([]Device, error) {
	out, err := a.run("", 0, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return parseDeviceList(out), nil
}

func parseDeviceList(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		d := Device{
			Serial: fields[0],
			State:  fields[1],
			Kind:   KindOfSerial(fields[0]),
		}
		for _, field := range fields[2:] {
			if value, ok := strings.CutPrefix(field, "model:"); ok {
				d.Model = value
			}
		}
		devices = append(devices, d)
	}
	return devices
}

// SelectDevice applies the session device policy: an explicit serial must be
// present and authorized; otherwise prefer USB, then any existing TCP/IP
// device.
func SelectDevice(devices []Device, serial string) (Device, error) {
	if serial != "" {
		for _, d := range devices {
			if d.Serial != serial {
				continue
			}
			if d.State == "unauthorized" {
				return Device{}, &DeviceUnauthorizedError{Serial: serial}
			}
			return d, nil
		}
		return Device{}, &DeviceNotFoundError{Serial: serial}
	}

	var usb, tcpip []Device
	for _, d := range devices {
		if d.State != "device" {
			continue
		}
		switch d.Kind {
		case DeviceKindTCPIP:
			tcpip = append(tcpip, d)
		default:
			usb = append(usb, d)
		}
	}
	if len(usb) > 0 {
		return usb[0], nil
	}
	if len(tcpip) > 0 {
		return tcpip[0], nil
	}
	return Device{}, &DeviceNotFoundError{}
}

// DeviceEvent reports a device coming or going on the adb server
type DeviceEvent struct {
	Serial string
	Online bool
}

// WatchDevices subscribes to the local adb server's device events through the
// goadb client. The channel closes when the watcher shuts down or errors.
func WatchDevices(stop <-chan struct{}) (<-chan DeviceEvent, error) {
	client, err := goadb.NewWithConfig(goadb.ServerConfig{Port: goadb.AdbPort})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create adb client on port %d", goadb.AdbPort)
	}
	if err := client.StartServer(); err != nil {
		return nil, errors.Wrap(err, "failed to start adb server")
	}

	watcher := client.NewDeviceWatcher()
	events := make(chan DeviceEvent, 8)

	go func() {
		defer close(events)
		defer watcher.Shutdown()
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.C():
				if !ok {
					return
				}
				switch event.NewState {
				case goadb.StateOnline:
					events <- DeviceEvent{Serial: event.Serial, Online: true}
				case goadb.StateOffline:
					events <- DeviceEvent{Serial: event.Serial, Online: false}
				}
			}
		}
	}()

	return events, nil
}
