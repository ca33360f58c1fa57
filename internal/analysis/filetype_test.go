package analysis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hara602/downloadSentry/internal/analysis"
)

func TestInspect(t *testing.T) {
	pdf := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n")
	exe := append([]byte("MZ\x90\x00\x03\x00\x00\x00"), make([]byte, 64)...)
	elf := append([]byte("\x7fELF\x02\x01\x01\x00"), make([]byte, 64)...)

	tests := []struct {
		name       string
		file       string
		body       []byte
		wantType   string
		wantExt    string
		masquerade bool
	}{
		{name: "pdf as pdf", file: "report.pdf", body: pdf, wantType: "application/pdf", wantExt: "pdf"},
		{name: "exe as pdf", file: "invoice.pdf", body: exe, wantExt: "exe", masquerade: true},
		{name: "exe as dll alias", file: "helper.dll", body: exe, wantExt: "exe"},
		{name: "elf without extension", file: "payload", body: elf, wantExt: "elf", masquerade: true},
		{name: "plain text", file: "notes.txt", body: []byte("hello world\n")},
		{name: "empty", file: "empty.bin", body: nil},
	}

	inspector := analysis.NewTypeInspector()
	dir := t.TempDir()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, tt.body, 0o600))

			res, err := inspector.Inspect(path)
			require.NoError(t, err)

			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, res.ContentType)
			}
			assert.Equal(t, tt.wantExt, res.RealExt)
			assert.Equal(t, tt.masquerade, res.Masquerade)
		})
	}
}

func TestInspect_MissingFile(t *testing.T) {
	_, err := analysis.NewTypeInspector().Inspect(filepath.Join(t.TempDir(), "gone.pdf"))
	assert.Error(t, err)
}
