package security

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

type QREncoder interface {
	Encode(content string) ([]byte, error)
}

type PNGQREncoder struct {
	size int
}

func NewPNGQREncoder(size int) *PNGQREncoder {
	if size <= 0 {
		size = 256
	}
	return &PNGQREncoder{size: size}
}

func (e *PNGQREncoder) Encode(content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	png, err := qrcode.Encode(content, qrcode.Medium, e.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
