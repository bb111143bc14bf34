package adb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstUsableIP(t *testing.T) {
	out := "2: wlan0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500\n" +
		"    inet 10.0.2.15/24 brd 10.0.2.255 scope global wlan0\n" +
		"    inet 192.168.1.40/24 brd 192.168.1.255 scope global wlan0\n"
	ip := firstUsableIP(inetRe.FindAllStringSubmatch(out, -1))
	assert.Equal(t, "192.168.1.40", ip)
}

func TestFirstUsableIPAllRejected(t *testing.T) {
	out := "    inet 10.0.2.15/24 scope global wlan0\n" +
		"    inet 10.10.10.3/24 scope global wlan0\n"
	assert.Empty(t, firstUsableIP(inetRe.FindAllStringSubmatch(out, -1)))
}

func TestParseRouteSourceIP(t *testing.T) {
	out := "default via 192.168.1.1 dev wlan0 proto dhcp metric 600\n" +
		"192.168.1.0/24 dev wlan0 proto kernel scope link src 192.168.1.40\n"
	assert.Equal(t, "192.168.1.40", parseRouteSourceIP(out))
}

func TestParseRouteSourceIPNoWlan(t *testing.T) {
	out := "192.168.232.0/24 dev rmnet0 proto kernel scope link src 192.168.232.2\n"
	assert.Empty(t, parseRouteSourceIP(out))
}

func TestUsableIP(t *testing.T) {
	assert.False(t, usableIP("10.0.2.15"))
	assert.False(t, usableIP("10.10.10.1"))
	assert.True(t, usableIP("10.1.0.4"))
	assert.True(t, usableIP("172.16.0.2"))
	assert.True(t, usableIP("192.168.1.40"))
}
