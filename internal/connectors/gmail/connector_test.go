package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oficina/internal/config"
)

func TestDecodeBase64URL(t *testing.T) {
	raw := []byte("Subject: OS 1\r\n\r\nOS: 1\r\n")
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding} {
		got, err := decodeBase64URL(enc.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	}
	_, err := decodeBase64URL("***")
	require.Error(t, err)
}

func TestReceivedAt(t *testing.T) {
	assert.Equal(t, "2024-03-01T12:30:00Z", receivedAt("Fri, 01 Mar 2024 09:30:00 -0300", 0))
	assert.Equal(t, "2024-03-01T00:00:00Z", receivedAt("not a date", 1709251200000))
}

func TestNewConnectorRequiresCredentials(t *testing.T) {
	_, err := NewConnector(config.Config{GmailClientID: "id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GMAIL_CLIENT_SECRET")
}
