package perfstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeAccumulator(t *testing.T) {
	a := TimeAccumulator{}
	require.Equal(t, time.Duration(0), a.Average())
	require.Equal(t, 0.0, a.AverageMilliseconds())

	a.AddSample(2 * time.Millisecond)
	a.AddSample(4 * time.Millisecond)
	require.EqualValues(t, 2, a.Samples)
	require.Equal(t, 3*time.Millisecond, a.Average())
	require.Equal(t, 3.0, a.AverageMilliseconds())

	start := time.Now().Add(-time.Second)
	now := a.AddSince(start)
	require.False(t, now.Before(start.Add(time.Second)))
	require.EqualValues(t, 3, a.Samples)
	require.Greater(t, a.Average(), 3*time.Millisecond)

	a.Reset()
	require.EqualValues(t, 0, a.Samples)
	require.Equal(t, time.Duration(0), a.Average())
}
