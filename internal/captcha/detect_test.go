package captcha

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sitekey = "6LeIxAcTAAAAAJcZVRqyHh71UMIEGNQ_MXjiZKhI"

func TestDetectSitekey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
	}{
		{
			name: "data attribute",
			html: `<div class="g-recaptcha" data-sitekey="` + sitekey + `"></div>`,
		},
		{
			name: "explicit render call",
			html: `<script>grecaptcha.render('widget', {'sitekey': '` + sitekey + `'});</script>`,
		},
		{
			name: "iframe embed",
			html: `<iframe src="https://www.google.com/recaptcha/api2/anchor?ar=1&k=` + sitekey + `&co=x"></iframe>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := DetectSitekey(tt.html)
			require.True(t, ok)
			require.Equal(t, sitekey, got)
		})
	}
}

func TestDetectSitekeyAbsent(t *testing.T) {
	t.Parallel()

	_, ok := DetectSitekey(`<html><body><form><input name="q"></form></body></html>`)
	require.False(t, ok)
}
