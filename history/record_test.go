package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordString(t *testing.T) {
	assert.Equal(t, "1500,0,2", Record{Timestamp: 1500, From: 0, To: 2}.String())
}

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord("1500,0,2")
	require.NoError(t, err)
	assert.Equal(t, Record{Timestamp: 1500, From: 0, To: 2}, rec)

	rec, err = ParseRecord("  42, 3 ,1\r\n")
	require.NoError(t, err)
	assert.Equal(t, Record{Timestamp: 42, From: 3, To: 1}, rec)

	for _, line := range []string{
		"",
		"1500,0",
		"1500,0,2,9",
		"x,0,2",
		"1500,a,2",
		"1500,0,b",
		"1500,0,-1",
		"99999999999,0,1",
	} {
		_, err := ParseRecord(line)
		assert.ErrorIs(t, err, ErrMalformedRecord, "line %q", line)
	}
}

func TestLastLine(t *testing.T) {
	line, ok := lastLine([]byte("1,0,1\n2,1,2\n\n  \n"))
	assert.True(t, ok)
	assert.Equal(t, "2,1,2", line)

	_, ok = lastLine([]byte("\n\n"))
	assert.False(t, ok)
}
