package channel

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRSize is the PNG edge length used by the pairing page.
const DefaultQRSize = 320

// QRCodePNG renders a pairing code as a PNG image.
func QRCodePNG(code string, size int) ([]byte, error) {
	if code == "" {
		return nil, fmt.Errorf("empty pairing code")
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(code, qrcode.Medium, size)
}
