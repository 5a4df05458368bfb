package admin

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/lexicon"
)

func TestPolicyValue_Set(t *testing.T) {
	p := policyValue(domain.OnNoMatchReject)

	require.NoError(t, p.Set(" Broaden_To_All "))
	assert.Equal(t, "broaden_to_all", p.String())
	assert.Equal(t, "policy", p.Type())

	err := p.Set("ignore")
	require.Error(t, err)
	assert.Equal(t, "broaden_to_all", p.String())
}

func TestClassify_MultiDomainSplitsBudget(t *testing.T) {
	out, err := classify(lexicon.Default(), "protein after running", domain.OnNoMatchReject, 3, 15)
	require.NoError(t, err)

	assert.Equal(t, "multi", out.Kind)
	assert.Equal(t, []string{"food", "activity"}, out.Domains)
	assert.Equal(t, map[string]int{"food": 8, "activity": 8}, out.Budget)
}

func TestClassify_SingleDomainGetsMaxK(t *testing.T) {
	out, err := classify(lexicon.Default(), "is cycling better than running", domain.OnNoMatchReject, 3, 15)
	require.NoError(t, err)

	assert.Equal(t, "single", out.Kind)
	assert.Equal(t, []string{"activity"}, out.Domains)
	assert.Equal(t, 15, out.Budget["activity"])
	assert.Equal(t, 2, out.Scores["activity"])
}

func TestClassify_NoMatch(t *testing.T) {
	tests := []struct {
		name    string
		policy  domain.OnNoMatchPolicy
		domains []string
	}{
		{"reject", domain.OnNoMatchReject, []string{}},
		{"broaden", domain.OnNoMatchBroaden, []string{"food", "activity"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := classify(lexicon.Default(), "what time is it", tt.policy, 3, 15)
			require.NoError(t, err)
			assert.Equal(t, tt.domains, out.Domains)
		})
	}
}

func TestClassify_InvalidBounds(t *testing.T) {
	_, err := classify(lexicon.Default(), "protein", domain.OnNoMatchReject, 10, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidBudget)
}

func TestClassifyCmd_Output(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		cmd := ClassifyCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"high", "protein", "breakfast"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, buf.String(), "single")
		assert.Contains(t, buf.String(), "FOOD DATA")
		assert.Contains(t, buf.String(), "k=15")
	})

	t.Run("json refused", func(t *testing.T) {
		var buf bytes.Buffer
		cmd := ClassifyCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"-o", "json", "tell me a joke"})

		require.NoError(t, cmd.Execute())
		var out classifyOutput
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, "no_match", out.Kind)
		assert.Empty(t, out.Domains)
		assert.Nil(t, out.Budget)
	})

	t.Run("bad policy", func(t *testing.T) {
		cmd := ClassifyCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--on-no-match", "shrug", "protein"})

		assert.Error(t, cmd.Execute())
	})
}
