package filter

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextFromMessage_Plain(t *testing.T) {
	raw := "From: a@example.com\r\nSubject: hi\r\n\r\nplain body text"
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)

	text, err := extractTextFromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "plain body text", text)
}

func TestExtractTextFromMessage_MultipartPicksTextPlain(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"the plain part\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>the html part</p>\r\n" +
		"--XYZ--\r\n"
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)

	text, err := extractTextFromMessage(msg)
	require.NoError(t, err)
	assert.Contains(t, text, "the plain part")
	assert.NotContains(t, text, "html part")
}

func TestDecodeEncodedHeader(t *testing.T) {
	decoded, err := decodeEncodedHeader("=?UTF-8?Q?Caf=C3=A9_news?=")
	require.NoError(t, err)
	assert.Equal(t, "Café news", decoded)

	passthrough, err := decodeEncodedHeader("Plain subject")
	require.NoError(t, err)
	assert.Equal(t, "Plain subject", passthrough)
}
