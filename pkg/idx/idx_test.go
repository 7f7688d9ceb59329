package idx

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := New(PrefixClient)
	require.False(t, id.IsZero())
	require.Equal(t, PrefixClient, id.Prefix())

	parsed, err := Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "cli", "_01J9Z3K6Q4S8T2V7W5X0Y1Z2A3", "cli_nope", New(PrefixUser).String()[4:]} {
		_, err := Parse(s)
		require.ErrorIs(t, err, ErrInvalid, s)
	}
}

func TestOrdering(t *testing.T) {
	ids := make([]string, 0, 50)
	for range 50 {
		ids = append(ids, New(PrefixCode).String())
	}
	require.True(t, slices.IsSorted(ids), "monotonic ids must sort in creation order")
}

func TestTimeExtraction(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	id := NewAt(PrefixConnection, at)
	require.True(t, id.Time().Equal(at))
	require.True(t, ID("bogus").Time().IsZero())
}
