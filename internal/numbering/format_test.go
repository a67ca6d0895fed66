package numbering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateFormat(t *testing.T) {
	valid := []string{
		"{prefix}{year:04d}{month:02d}-{seq:05d}",
		"{prefix}-{year:02d}/{seq:04d}",
		"{seq}",
		"INV-{seq:06d}",
		"{prefix}{year}{month}{day}-{seq:d}",
	}
	for _, f := range valid {
		require.NoError(t, ValidateFormat(f), f)
	}

	invalid := []string{
		"{prefix}{unknown}",
		"{seq:5d}",
		"{seq:0xd}",
		"{prefix",
		"prefix}",
		"{seq:}",
	}
	for _, f := range invalid {
		err := ValidateFormat(f)
		require.ErrorIs(t, err, ErrInvalidFormat, f)
	}
}

func TestRender(t *testing.T) {
	today := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

	tmpl, err := compileFormat("{prefix}{year:04d}{month:02d}-{seq:05d}")
	require.NoError(t, err)
	require.Equal(t, "FQ202503-00001", tmpl.render("FQ", today, 1, 0))

	// Bare {seq} falls back to the sequence's configured padding.
	tmpl, err = compileFormat("INV/{year:04d}/{seq}")
	require.NoError(t, err)
	require.Equal(t, "INV/2025/0042", tmpl.render("", today, 42, 4))
	require.Equal(t, "INV/2025/42", tmpl.render("", today, 42, 0))

	// Width never truncates.
	tmpl, err = compileFormat("{seq:02d}")
	require.NoError(t, err)
	require.Equal(t, "12345", tmpl.render("", today, 12345, 0))

	tmpl, err = compileFormat("{prefix}{day:02d}")
	require.NoError(t, err)
	require.Equal(t, "DO01", tmpl.render("DO", today, 1, 0))
}
