package ncm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// scenario 5 from spec §8: RX short-packet framing.
func TestBlockComplete_ShortPacketFraming(t *testing.T) {
	const maxPacketSize = 64
	const transferSize = 64

	require.False(t, blockComplete(192, maxPacketSize, 192, transferSize), "full packets shouldn't close the block")
	require.True(t, blockComplete(232, maxPacketSize, 40, transferSize), "a final short transfer must close the block")
}

func TestBlockComplete_ShortTerminatingPacket(t *testing.T) {
	// rx_length not a multiple of wMaxPacketSize closes the block even if
	// the transfer itself wasn't short relative to transferSize.
	require.True(t, blockComplete(100, 64, 100, 64))
}

func TestBlockComplete_ExactMultipleContinues(t *testing.T) {
	require.False(t, blockComplete(128, 64, 64, 64))
}

func TestBlockComplete_ZeroMaxPacketSizeUsesTransferSizeOnly(t *testing.T) {
	require.True(t, blockComplete(40, 0, 40, 64))
	require.False(t, blockComplete(64, 0, 64, 64))
}
