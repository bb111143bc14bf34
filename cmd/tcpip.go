package cmd

import (
	"net"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/droidcast/droidcast/internal/adb"
)

// NewTcpipCommand switches a USB device to TCP/IP mode and connects to it
func NewTcpipCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tcpip",
		Short: "Switch a USB device to TCP/IP adb and connect",
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := newAdb()
			if err != nil {
				return err
			}
			serial, _ := cmd.Flags().GetString("serial")
			port, _ := cmd.Flags().GetInt("port")

			devices, err := driver.ListDevices()
			if err != nil {
				return err
			}
			device, err := adb.SelectDevice(devices, serial)
			if err != nil {
				return err
			}
			if device.Kind == adb.DeviceKindTCPIP {
				color.Yellow("%s is already a TCP/IP device", device.Serial)
				return nil
			}

			ip, err := driver.GetDeviceIP(device.Serial)
			if err != nil {
				return err
			}
			if current, err := driver.GetAdbTCPPort(device.Serial); err != nil || current != port {
				if err := driver.EnableTcpip(device.Serial, port); err != nil {
					return err
				}
			}
			if err := driver.ConnectTcpip(ip, port); err != nil {
				return err
			}
			color.Green("Connected to %s:%d", ip, port)
			return nil
		},
	}
	cmd.Flags().Int("port", 5555, "TCP/IP adb port")

	cmd.AddCommand(&cobra.Command{
		Use:   "disconnect <ip:port>",
		Short: "Disconnect a TCP/IP device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := newAdb()
			if err != nil {
				return err
			}
			ip, port := args[0], 5555
			if host, portStr, err := net.SplitHostPort(args[0]); err == nil {
				if p, err := strconv.Atoi(portStr); err == nil {
					ip, port = host, p
				}
			}
			driver.DisconnectTcpip(ip, port)
			return nil
		},
	})
	return cmd
}
