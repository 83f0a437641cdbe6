package jobs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceDescriptorCoversPlatform(t *testing.T) {
	t.Parallel()

	d := SourceDescriptor{Name: "jsearch", Covers: []string{"linkedin", "glassdoor"}}
	require.True(t, d.CoversPlatform("LinkedIn"))
	require.False(t, d.CoversPlatform("dice"))
	require.True(t, d.Unlimited())
	d.MonthlyQuota = Quota(200)
	require.False(t, d.Unlimited())
	require.Equal(t, 200, *d.MonthlyQuota)
}

func TestPriorityMarshalsAsLabel(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(map[string]Priority{"p": PriorityMedium})
	require.NoError(t, err)
	require.JSONEq(t, `{"p":"medium"}`, string(out))
	require.Equal(t, "high", PriorityHigh.String())
	require.Equal(t, "low", Priority(42).String())
}

func TestCredentialsEmpty(t *testing.T) {
	t.Parallel()

	require.True(t, Credentials{Username: "a"}.Empty())
	require.False(t, Credentials{Username: "a", Password: "b"}.Empty())
}
