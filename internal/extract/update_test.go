package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/scout/internal/patterns"
)

func TestDecodeUpdateBounds(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{"size below range", `{"ai_models":[{"id":"X","size":11,"height":2}]}`, true},
		{"size at lower bound", `{"ai_models":[{"id":"X","size":12,"height":2}]}`, false},
		{"size at upper bound", `{"ai_models":[{"id":"X","size":32,"height":2}]}`, false},
		{"size above range", `{"ai_models":[{"id":"X","size":33,"height":2}]}`, true},
		{"height 3", `{"ai_models":[{"id":"X","size":16,"height":3}]}`, true},
		{"height 2", `{"ai_models":[{"id":"X","size":16,"height":2}]}`, false},
		{"height 0", `{"ai_models":[{"id":"X","size":16,"height":0}]}`, false},
		{"negative height", `{"ai_models":[{"id":"X","size":16,"height":-1}]}`, true},
		{"fractional height", `{"ai_models":[{"id":"X","size":16,"height":1.5}]}`, true},
		{"size as string", `{"ai_models":[{"id":"X","size":"16","height":2}]}`, true},
		{"id as number", `{"ai_models":[{"id":7,"size":16,"height":2}]}`, true},
		{"empty id", `{"ai_models":[{"id":"","size":16,"height":2}]}`, true},
		{"missing height", `{"ai_models":[{"id":"X","size":16}]}`, true},
		{"title must be string", `{"ai_models":[{"id":"X","size":16,"height":2,"title":1}]}`, true},
		{"details as array", `{"ai_models":[{"id":"X","size":16,"height":2,"details":["a","b"]}]}`, true},
		{"details as map", `{"ai_models":[{"id":"X","size":16,"height":2,"details":{"vendor":"acme"}}]}`, false},
		{"no known keys", `{"models":[]}`, true},
		{"array not object", `[1,2]`, true},
		{"category not array", `{"ai_models":{"id":"X"}}`, true},
		{"empty arrays are valid", `{"llm_clients":[],"ai_models":[],"company_resources":[]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := DecodeUpdate([]byte(tt.json))
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, u)
				assert.True(t, errors.Is(err, ErrInvalidUpdate))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, u)
		})
	}
}

func TestDecodeUpdateIsAllOrNothing(t *testing.T) {
	// one bad component in one array invalidates the whole update
	_, err := DecodeUpdate([]byte(`{
		"ai_models": [{"id":"GPT-4","size":16,"height":2}],
		"company_resources": [{"id":"Jira","size":16,"height":2},{"id":"Slack","size":99,"height":2}]
	}`))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Problems, 1)
	assert.Contains(t, verr.Problems[0], "company_resources[1]")
	assert.Contains(t, verr.Problems[0], "size must be at most 32")
}

func TestDecodeUpdateKeepsOptionalFields(t *testing.T) {
	u, err := DecodeUpdate([]byte(`{"llm_clients":[{"id":"Cursor","size":16,"height":2,"title":"Cursor","description":"editor","icon":"terminal","type":"implementation","parent":"LLM Clients","details":{"seats":40}}]}`))
	require.NoError(t, err)
	require.Len(t, u.LLMClients, 1)
	c := u.LLMClients[0]
	assert.Equal(t, "Cursor", c.ID)
	assert.Equal(t, 16.0, c.Size)
	assert.Equal(t, 2, c.Height)
	assert.Equal(t, "editor", c.Description)
	assert.Equal(t, "LLM Clients", c.Parent)
	assert.Equal(t, 40.0, c.Details["seats"])
	assert.Empty(t, u.AIModels)
	assert.NotNil(t, u.AIModels)
}

func TestParseUpdate(t *testing.T) {
	t.Run("bare json in prose", func(t *testing.T) {
		u, err := ParseUpdate(`Here you go: {"ai_models":[{"id":"Gemini","size":16,"height":2}]} thanks`)
		require.NoError(t, err)
		assert.Equal(t, []string{"Gemini"}, u.IDs())
	})

	t.Run("tagged form", func(t *testing.T) {
		u, err := ParseUpdate("Noted {not json}.\n<network_update>\n{\"company_resources\":[{\"id\":\"Jira\",\"size\":16,\"height\":2}]}\n</network_update>")
		require.NoError(t, err)
		assert.Equal(t, []string{"Jira"}, u.IDs())
	})

	t.Run("no update", func(t *testing.T) {
		_, err := ParseUpdate("just chatting")
		assert.ErrorIs(t, err, ErrNoUpdate)
	})

	t.Run("invalid update is rejected whole", func(t *testing.T) {
		u, err := ParseUpdate(`<network_update>{"ai_models":[{"id":"X","size":5,"height":2}]}</network_update>`)
		assert.Nil(t, u)
		assert.ErrorIs(t, err, ErrInvalidUpdate)
	})
}

func TestValidateTypedUpdate(t *testing.T) {
	u := NewNetworkUpdate()
	u.Add(patterns.KindAIModels, Component{ID: "GPT-4", Size: 16, Height: 2})
	assert.NoError(t, Validate(u))

	u.Add(patterns.KindLLMClients, Component{ID: "", Size: 40, Height: 2})
	err := Validate(u)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 2)
}

func TestNetworkUpdateHelpers(t *testing.T) {
	u := NewNetworkUpdate()
	assert.Equal(t, 0, u.Len())

	u.Add(patterns.KindCompanyResources, Component{ID: "Jira"})
	u.Add(patterns.KindLLMClients, Component{ID: "Cursor"})
	u.Add(patterns.Kind("unknown"), Component{ID: "ignored"})

	assert.Equal(t, 2, u.Len())
	assert.Equal(t, []string{"Cursor", "Jira"}, u.IDs())
	assert.Nil(t, u.Components(patterns.Kind("unknown")))
}
