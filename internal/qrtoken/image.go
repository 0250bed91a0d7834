package qrtoken

import qrcode "github.com/skip2/go-qrcode"

const imageSize = 300

// PNG renders the token value as a scannable QR image.
func PNG(value string) ([]byte, error) {
	return qrcode.Encode(value, qrcode.Medium, imageSize)
}
