package adb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppList(t *testing.T) {
	out := "[server] INFO: Device: Pixel 7\n" +
		"[server] INFO: List of apps:\n" +
		"[server] INFO:  * Camera                     com.android.camera\n" +
		"[server] INFO:  - Firefox                    org.mozilla.firefox\n" +
		"[server] INFO:  - F-Droid Store              org.fdroid.fdroid\n"

	apps := parseAppList(out)
	require.Len(t, apps, 3)

	assert.Equal(t, "Camera", apps[0].Name)
	assert.Equal(t, "com.android.camera", apps[0].Package)
	assert.True(t, apps[0].System)

	assert.Equal(t, "Firefox", apps[1].Name)
	assert.Equal(t, "org.mozilla.firefox", apps[1].Package)
	assert.False(t, apps[1].System)

	// Display names may contain spaces; the package is always the last field
	assert.Equal(t, "F-Droid Store", apps[2].Name)
	assert.Equal(t, "org.fdroid.fdroid", apps[2].Package)
}

func TestParseAppListIgnoresNoise(t *testing.T) {
	out := "WARNING: linker: app_process: unused DT entry\n" +
		"[server] INFO: List of apps:\n" +
		"[server] INFO:  - Clock                      com.android.deskclock\n" +
		"[server] DEBUG: something else\n" +
		"stray line without prefix\n"

	apps := parseAppList(out)
	require.Len(t, apps, 1)
	assert.Equal(t, "com.android.deskclock", apps[0].Package)
}

func TestParseAppListNoSection(t *testing.T) {
	out := "[server] INFO:  - Clock                      com.android.deskclock\n"
	assert.Empty(t, parseAppList(out))
}
