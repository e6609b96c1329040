package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/marginlab/internal/margin"
)

func TestRunCalcPrintsResult(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runCalc(strings.NewReader(scenarioABody), &out))

	var result margin.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, 50000.0, result.MonthlyProfit)
}

func TestRunCalcReturnsValidationError(t *testing.T) {
	var out bytes.Buffer
	err := runCalc(strings.NewReader(`{"sellingPrice":0}`), &out)

	var verr *margin.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("sellingPrice"))
	assert.Empty(t, out.String())
}

func TestCalcCommandReadsStdin(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(scenarioABody))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"calc"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"monthlyProfit": 50000`)
}
