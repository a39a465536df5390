package helpers

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	DefaultQRSize  = 256
	dataURLPNGHead = "data:image/png;base64,"
)

// QREncoder renders opaque identifiers as scannable PNG images.
type QREncoder struct {
	Level qrcode.RecoveryLevel
	Size  int
}

func NewQREncoder(level string, size int) (*QREncoder, error) {
	recovery, err := ParseRecoveryLevel(level)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	return &QREncoder{Level: recovery, Size: size}, nil
}

func (e *QREncoder) PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	return qrcode.Encode(content, e.Level, e.Size)
}

func (e *QREncoder) DataURL(content string) (string, error) {
	png, err := e.PNG(content)
	if err != nil {
		return "", err
	}
	return dataURLPNGHead + base64.StdEncoding.EncodeToString(png), nil
}

func ParseRecoveryLevel(level string) (qrcode.RecoveryLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low", "l":
		return qrcode.Low, nil
	case "", "medium", "m":
		return qrcode.Medium, nil
	case "high", "q":
		return qrcode.High, nil
	case "highest", "h":
		return qrcode.Highest, nil
	default:
		return qrcode.Medium, fmt.Errorf("unknown qr recovery level %q", level)
	}
}
