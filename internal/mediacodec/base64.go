// Package mediacodec converts media payloads between the shapes the platform
// accepts and the shapes the studio stores: base64 text, WAV containers and
// raw PCM frames.
package mediacodec

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeBase64 returns the standard base64 form of data.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes a base64 payload. A leading data URL prefix such as
// "data:image/png;base64," is stripped; the declared MIME type is returned
// when present.
func DecodeBase64(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	mime := ""
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("mediacodec: malformed data url")
		}
		header := payload[len("data:"):comma]
		mime = strings.TrimSuffix(header, ";base64")
		payload = payload[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("mediacodec: decode base64: %w", err)
	}
	return data, mime, nil
}
