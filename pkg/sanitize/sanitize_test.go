package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactPII(t *testing.T) {
	in := "Call me at +62 812-3456-7890 or mail ada@example.com."
	out := RedactPII(in)
	assert.Equal(t, "Call me at [redacted phone] or mail [redacted email].", out)
	assert.Equal(t, "", RedactPII(""))
}

func TestMaskAccount(t *testing.T) {
	assert.Equal(t, "******6789", MaskAccount("0123456789"))
	assert.Equal(t, "***", MaskAccount("123"))
	assert.Equal(t, "", MaskAccount("  "))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "short", Summary("short", 10))
	assert.Equal(t, "hello…", Summary("hello world again", 8))
	assert.Equal(t, "abcdefgh…", Summary("abcdefghijkl", 8))
}

func TestPreview(t *testing.T) {
	got := Preview("  Paid from account 12345678901 by ada@example.com  ", 80)
	assert.Equal(t, "Paid from account *******8901 by [redacted email]", got)
}
