package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Transcript 2024/2025",
		Notes:   []string{"Student: Amal"},
		Headers: []string{"Subject", "Final"},
		Rows: []map[string]string{
			{"Subject": "Mathematics", "Final": "77.5"},
			{"Subject": "Physics, applied"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("\ufeff")))

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(out), "\ufeff")), "\n")
	require.Equal(t, []string{"Subject,Final", "Mathematics,77.5", `"Physics, applied",`}, lines)
}

func TestCSVExporterPreambleAndDelimiter(t *testing.T) {
	out, err := NewCSVExporter(WithPreamble(), WithDelimiter(';')).Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(out), "\ufeff")), "\n")
	require.Equal(t, []string{
		"Transcript 2024/2025",
		"Student: Amal",
		"",
		"Subject;Final",
		"Mathematics;77.5",
		"Physics, applied;",
	}, lines)
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter("").Render(sampleDataset())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterMissingFont(t *testing.T) {
	_, err := NewPDFExporter("/nonexistent/font.ttf").Render(sampleDataset())
	require.Error(t, err)
}
