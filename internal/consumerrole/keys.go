package consumerrole

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// decodeHexOrBase64 accepts either encoding for the encryption key/IV
// config fields, since cmd/dbtool's "keys generate" prints base64 while
// an operator might paste a hex value from elsewhere.
func decodeHexOrBase64(value string) ([]byte, error) {
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("value is neither valid hex nor base64: %q", value)
}
