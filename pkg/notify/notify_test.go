package notify_test

import (
	"bytes"
	"testing"

	fcolor "github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/envswitch/envswitch/pkg/notify"
)

func TestMain(m *testing.M) {
	fcolor.NoColor = true
	m.Run()
}

func TestMessageSymbols(t *testing.T) {
	tests := []struct {
		name  string
		write func(*bytes.Buffer)
		want  string
	}{
		{"error", func(b *bytes.Buffer) { notify.Errorf(b, "failed %s", "x") }, "✗ failed x\n"},
		{"warning", func(b *bytes.Buffer) { notify.Warningf(b, "careful") }, "⚠ careful\n"},
		{"success", func(b *bytes.Buffer) { notify.Successf(b, "saved %d", 3) }, "✔ saved 3\n"},
		{"info", func(b *bytes.Buffer) { notify.Infof(b, "note") }, "ℹ note\n"},
		{"hint", func(b *bytes.Buffer) { notify.Hintf(b, "try this") }, "→ try this\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			tt.write(&out)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestMultilineIndent(t *testing.T) {
	var out bytes.Buffer
	notify.Infof(&out, "first\nsecond")
	assert.Equal(t, "ℹ first\n  second\n", out.String())
}

func TestContentWithoutArgsIsLiteral(t *testing.T) {
	var out bytes.Buffer
	notify.Successf(&out, "100% done")
	assert.Equal(t, "✔ 100% done\n", out.String())
}

func TestMasker(t *testing.T) {
	m := notify.NewMasker(true, []string{"internal_url"})

	assert.True(t, m.IsSensitive("DB_PASSWORD"))
	assert.True(t, m.IsSensitive("github_token"))
	assert.True(t, m.IsSensitive("STRIPE_API_KEY"))
	assert.True(t, m.IsSensitive("INTERNAL_URL"))
	assert.False(t, m.IsSensitive("PORT"))

	assert.Equal(t, "8080", m.Value("PORT", "8080"))
	assert.Equal(t, "*****", m.Value("DB_PASSWORD", "hunter"[:5]))
	assert.Equal(t, "sk_l********", m.Value("API_KEY", "sk_live_123456"))

	off := notify.NewMasker(false, nil)
	assert.Equal(t, "hunter2", off.Value("DB_PASSWORD", "hunter2"))

	var nilMasker *notify.Masker
	assert.Equal(t, "x", nilMasker.Value("TOKEN", "x"))
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "", notify.MaskValue(""))
	assert.Equal(t, "***", notify.MaskValue("abc"))
	assert.Equal(t, "abcd********", notify.MaskValue("abcdefghij"))
}
