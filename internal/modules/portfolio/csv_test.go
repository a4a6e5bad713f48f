package portfolio

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPositionsCSV(t *testing.T) {
	input := `asset,quantity,cost_basis_price,acquired_at
aapl,10,150.5,2023-06-01
MSFT,5,300,
`
	positions, err := ReadPositionsCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, "AAPL", positions[0].Asset)
	assert.Equal(t, 10.0, positions[0].Quantity)
	assert.Equal(t, 150.5, positions[0].CostBasisPrice)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), positions[0].AcquisitionDate)
	assert.True(t, positions[1].AcquisitionDate.IsZero())
}

func TestReadPositionsCSV_Errors(t *testing.T) {
	for _, input := range []string{
		"AAPL,10\n",
		"AAPL,ten,100\n",
		"AAPL,10,abc\n",
		"AAPL,10,100,yesterday\n",
	} {
		_, err := ReadPositionsCSV(strings.NewReader(input))
		assert.Error(t, err, input)
	}
}
