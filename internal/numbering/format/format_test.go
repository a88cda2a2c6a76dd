package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber(t *testing.T) {
	issued := time.Date(2026, 2, 7, 23, 0, 0, 0, time.UTC)

	got, err := Number("INV-{YYYY}-", issued, 42, 5)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-00042", got)

	got, err = Number("Q{YY}{MM}{DD}/", issued, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, "Q260207/007", got)

	got, err = Number("", issued, 123456, 3)
	require.NoError(t, err)
	assert.Equal(t, "123456", got)
}

func TestNumberRejects(t *testing.T) {
	issued := time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC)

	_, err := Number("INV-{SEQ}-", issued, 1, 5)
	assert.Error(t, err)

	_, err = Number("INV-", issued, 0, 5)
	assert.Error(t, err)
}
