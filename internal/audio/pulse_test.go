package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectFromListDefault(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.usb_mic", Description: "USB Microphone", Available: true},
		{ID: "alsa_input.builtin", Description: "Built-in Audio", Available: true, Default: true},
	}

	selection, err := selectFromList(devices, "default")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.builtin", selection.Device.ID)
	require.Empty(t, selection.Warning)
}

func TestSelectFromListByNameMatch(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.builtin", Description: "Built-in Audio", Available: true, Default: true},
		{ID: "alsa_input.usb_mic", Description: "USB Microphone", Available: true},
	}

	selection, err := selectFromList(devices, "usb")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.usb_mic", selection.Device.ID)
}

func TestSelectFromListFallsBackToDefault(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.builtin", Description: "Built-in Audio", Available: true, Default: true},
		{ID: "alsa_input.usb_mic", Description: "USB Microphone", Available: true, Muted: true},
	}

	selection, err := selectFromList(devices, "usb")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.builtin", selection.Device.ID)
	require.Contains(t, selection.Warning, "muted")
}

func TestSelectFromListNoMatch(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.builtin", Description: "Built-in Audio", Available: true, Default: true},
	}

	_, err := selectFromList(devices, "webcam")
	require.Error(t, err)
	require.Contains(t, err.Error(), "did not match")
}

func TestSelectFromListEmpty(t *testing.T) {
	_, err := selectFromList(nil, "default")
	require.Error(t, err)
}

func TestSelectFromListUnusableNoFallback(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.builtin", Description: "Built-in Audio", Muted: true, Default: true},
	}

	_, err := selectFromList(devices, "default")
	require.Error(t, err)
}
