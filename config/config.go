package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()

	// Session defaults
	v.SetDefault("session.host", "127.0.0.1")
	v.SetDefault("session.port", 27183)
	v.SetDefault("session.port_range_end", 27299)
	v.SetDefault("session.video", true)
	v.SetDefault("session.audio", true)
	v.SetDefault("session.control", true)
	v.SetDefault("session.codec", "h264")
	v.SetDefault("session.audio_codec", "opus")
	v.SetDefault("session.bitrate", 8000000)
	v.SetDefault("session.max_fps", 60)
	v.SetDefault("session.show_window", false)
	v.SetDefault("session.lazy_decode", true)
	v.SetDefault("session.stay_awake", false)
	v.SetDefault("session.clipboard_autosync", false)
	v.SetDefault("session.connection_timeout", 10.0)
	v.SetDefault("session.socket_timeout", 5.0)

	// Wireless defaults
	v.SetDefault("tcpip.enabled", false)
	v.SetDefault("tcpip.port", 5555)
	v.SetDefault("tcpip.auto_disconnect", false)

	// Server blob location; resolved relative to droidcast home when not absolute
	v.SetDefault("server.blob", "scrcpy-server")
	v.SetDefault("server.version", "3.3.4")

	// Home directory
	v.SetDefault("droidcast.home", filepath.Join(xdg.Home, ".droidcast"))

	// Environment variables
	v.AutomaticEnv()
	v.BindEnv("adb.path", "ADB")
	v.BindEnv("droidcast.home", "DROIDCAST_HOME")
	v.BindEnv("server.blob", "DROIDCAST_SERVER_BLOB")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths := []string{
		".",
		"$HOME/.droidcast",
		"/etc/droidcast",
	}

	for _, path := range configPaths {
		expandedPath := os.ExpandEnv(path)
		v.AddConfigPath(expandedPath)
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
		// Config file not found; ignore error and use defaults
	}
}

// GetHome returns the droidcast home directory
func GetHome() string {
	return v.GetString("droidcast.home")
}

// GetAdbPath returns an explicit adb executable override, or "" for auto-detection
func GetAdbPath() string {
	return v.GetString("adb.path")
}

// GetServerBlob returns the path of the scrcpy server blob to push
func GetServerBlob() string {
	blob := v.GetString("server.blob")
	if filepath.IsAbs(blob) {
		return blob
	}
	if _, err := os.Stat(blob); err == nil {
		return blob
	}
	return filepath.Join(GetHome(), blob)
}

// GetServerVersion returns the scrcpy server version argument
func GetServerVersion() string {
	return v.GetString("server.version")
}

// GetString exposes raw string lookup for cmd flag defaults
func GetString(key string) string { return v.GetString(key) }

// GetInt exposes raw int lookup for cmd flag defaults
func GetInt(key string) int { return v.GetInt(key) }

// GetBool exposes raw bool lookup for cmd flag defaults
func GetBool(key string) bool { return v.GetBool(key) }

// GetFloat64 exposes raw float lookup for cmd flag defaults
func GetFloat64(key string) float64 { return v.GetFloat64(key) }

// Save writes the current effective settings to a TOML snapshot under the
// droidcast home directory. Useful for inspecting what a session actually ran
// with.
func Save() (string, error) {
	home := GetHome()
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", err
	}
	data, err := toml.Marshal(v.AllSettings())
	if err != nil {
		return "", err
	}
	path := filepath.Join(home, "effective-config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
