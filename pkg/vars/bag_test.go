package vars

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromNames(t *testing.T) {
	bag, err := FromNames([]string{"Pow", "Mod"})
	require.NoError(t, err)
	require.Len(t, bag, 2)

	for _, name := range []VarName{Pow, Mod} {
		slot := bag[name]
		require.NotNil(t, slot, "missing slot %s", name)
		assert.True(t, slot.ReadPending)
		assert.False(t, slot.WritePending)
		assert.Nil(t, slot.Value)
	}
}

func TestFromNamesUnknownVariable(t *testing.T) {
	_, err := FromNames([]string{"Pow", "NoSuchVar"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidVar)
}

func TestFromPairs(t *testing.T) {
	bag, err := FromPairs(map[string]string{"Pow": "1", "SetTem": "24"})
	require.NoError(t, err)

	assert.Equal(t, 1, bag[Pow].Value)
	assert.True(t, bag[Pow].WritePending)
	assert.False(t, bag[Pow].ReadPending)
	assert.Equal(t, 24, bag[SetTem].Value)
}

func TestFromPairsBooleanDomain(t *testing.T) {
	_, err := FromPairs(map[string]string{"Pow": "2"})
	require.Error(t, err)

	var verr *ValueError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, Pow, verr.Name)
	assert.Equal(t, "2", verr.Literal)
}

func TestFromPairsFreeFormTime(t *testing.T) {
	bag, err := FromPairs(map[string]string{"time": "2018-05-11 19:42:01"})
	require.NoError(t, err)
	assert.Equal(t, "2018-05-11 19:42:01", bag[Time].Value)
}

func TestPendingReadsAfterStatusResult(t *testing.T) {
	bag, err := FromNames([]string{"Pow", "Mod"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Mod", "Pow"}, bag.PendingReads())

	// Simulated status response {cols:["Pow","Mod"], dat:[1,0]}.
	bag.ApplyReadResult("Pow", float64(1))
	bag.ApplyReadResult("Mod", float64(0))

	assert.Empty(t, bag.PendingReads())
	assert.False(t, bag[Pow].ReadPending)
	assert.False(t, bag[Mod].ReadPending)
	assert.Equal(t, float64(1), bag[Pow].Value)
	assert.Equal(t, float64(0), bag[Mod].Value)
}

func TestApplyReadResultIgnoresStrays(t *testing.T) {
	bag, err := FromNames([]string{"Pow"})
	require.NoError(t, err)

	bag.ApplyReadResult("NoSuchVar", 1) // not in catalog
	bag.ApplyReadResult("Mod", 1)       // in catalog, not in bag
	require.Len(t, bag, 1)
	assert.True(t, bag[Pow].ReadPending)
}

func TestPendingWritesPairing(t *testing.T) {
	bag, err := FromPairs(map[string]string{"SetTem": "27", "TemUn": "0"})
	require.NoError(t, err)

	names, values := bag.PendingWrites()
	require.Equal(t, []string{"SetTem", "TemUn"}, names)
	require.Equal(t, []any{27, 0}, values)

	// Device echo clears write flags and its value wins.
	bag.ApplyWriteResult("SetTem", float64(26))
	bag.ApplyWriteResult("TemUn", float64(0))

	names, _ = bag.PendingWrites()
	assert.Empty(t, names)
	assert.Equal(t, float64(26), bag[SetTem].Value)
}

func TestReportMap(t *testing.T) {
	bag, err := FromPairs(map[string]string{"Pow": "1"})
	require.NoError(t, err)

	m := bag.ReportMap()
	assert.Equal(t, map[string]any{"Pow": 1}, m)
}

func TestCatalogComplete(t *testing.T) {
	assert.Len(t, All, 20)
	for _, name := range All {
		_, ok := KindOf(name)
		assert.True(t, ok, "catalog entry missing for %s", name)
	}
}

func TestParseValueDomains(t *testing.T) {
	tests := []struct {
		name    VarName
		literal string
		want    any
		wantErr bool
	}{
		{name: Pow, literal: "0", want: 0},
		{name: Pow, literal: "1", want: 1},
		{name: Pow, literal: "2", wantErr: true},
		{name: Pow, literal: "x", wantErr: true},
		{name: Mod, literal: "4", want: 4},
		{name: Mod, literal: "300", wantErr: true},
		{name: SwUpDn, literal: "11", want: 11},
		{name: Time, literal: "whatever", want: "whatever"},
		{name: "Bogus", literal: "1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.name)+"="+tt.literal, func(t *testing.T) {
			got, err := ParseValue(tt.name, tt.literal)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
