package session

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/droidcast/droidcast/internal/adb"
)

const defaultTcpipPort = 5555

// enableParallelTcpip adds a TCP/IP route next to the live USB connection.
// ADB routes traffic over whichever path is reachable, so unplugging USB
// afterwards does not disrupt the session. Once the route is listed, the
// wireless serial becomes the preferred target for adb commands (see
// ActiveSerial) so teardown still works without the cable.
func (b *Builder) enableParallelTcpip(s *Session) error {
	cfg := s.Config
	serial := s.Device.Serial

	port := cfg.TcpipPort
	if port <= 0 {
		port = defaultTcpipPort
	}

	ip := cfg.TcpipIP
	if ip == "" {
		var err error
		ip, err = b.adb.GetDeviceIP(serial)
		if err != nil {
			return errors.Wrap(err, "could not determine device wlan address")
		}
	}

	current, err := b.adb.GetAdbTCPPort(serial)
	if err != nil {
		return err
	}
	if current != port {
		if err := b.adb.EnableTcpip(serial, port); err != nil {
			return err
		}
	}

	if err := b.adb.ConnectTcpip(ip, port); err != nil {
		return err
	}

	// The route should now be listed as its own tcpip device
	devices, err := b.adb.ListDevices()
	if err != nil {
		return err
	}
	wireless := fmt.Sprintf("%s:%d", ip, port)
	for _, d := range devices {
		if d.Serial == wireless && d.Kind == adb.DeviceKindTCPIP {
			s.TcpipConnected = true
			s.TcpipIP = ip
			s.TcpipPort = port
			s.TcpipSerial = wireless
			b.log.Info("Wireless path active", "addr", wireless)
			return nil
		}
	}
	return errors.Errorf("wireless route %s not listed after connect", wireless)
}
