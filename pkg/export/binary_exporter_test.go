package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func riskDataset() Dataset {
	return Dataset{
		Headers: []string{"scope", "key", "risk_score"},
		Rows: []map[string]string{
			{"scope": "student", "key": "s1", "risk_score": "7"},
			{"scope": "room", "key": "Unknown room", "risk_score": "1"},
		},
	}
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(riskDataset(), "Risk report", "Last 30 days")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "", "")
	assert.Error(t, err)
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(riskDataset(), "Risk")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Risk")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"scope", "key", "risk_score"}, rows[0])
	assert.Equal(t, "7", rows[1][2])
	assert.Equal(t, "Unknown room", rows[2][1])
}
