package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResearchResultValidate(t *testing.T) {
	valid := &ResearchResult{Title: "# France", Body: "Paris is the capital.", Bullets: "- Paris"}
	assert.NoError(t, valid.Validate())

	shortfall := &ResearchResult{Body: "No sufficient information was found."}
	assert.NoError(t, shortfall.Validate())

	empty := &ResearchResult{Title: "# Something", Body: "   "}
	assert.Error(t, empty.Validate())
}

func TestResearchResultRender(t *testing.T) {
	r := &ResearchResult{Title: "# France", Body: "Paris is the capital.", Bullets: "- Paris"}
	assert.Equal(t, "# France\n\nParis is the capital.\n\n- Paris", r.Render())

	noExtras := &ResearchResult{Body: "Body only."}
	assert.Equal(t, "Body only.", noExtras.Render())
}
