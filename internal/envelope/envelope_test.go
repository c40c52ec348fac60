package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		text   []byte
		binary []byte
	}{
		{"both populated", []byte(`{"command":"ping"}`), []byte{0x01, 0x02, 0x03}},
		{"empty binary", []byte(`{"command":"ping"}`), []byte{}},
		{"empty text", []byte{}, []byte{0xff}},
		{"both empty", []byte{}, []byte{}},
		{"large binary", []byte(`{"command":"blob"}`), make([]byte, 4096)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame := Encode(tc.text, tc.binary)
			text, binary, err := Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, tc.text, text)
			assert.Equal(t, tc.binary, binary)
		})
	}
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	frame := Encode([]byte(`{"command":"ping"}`), []byte{0x01})

	_, _, err := Decode(frame[:len(frame)-2])
	assert.Error(t, err)

	_, _, err = Decode(frame[:2])
	assert.Error(t, err)

	_, _, err = Decode(nil)
	assert.Error(t, err)
}
