package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meigma/gbx/core"
)

func TestCollectionName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		ident  core.Ident
		want   string
		wantOK bool
	}{
		{"numeric stadium", core.Ident{Collection: core.NumberID(6)}, "Stadium", true},
		{"numeric valley", core.Ident{Collection: core.NumberID(11)}, "Valley", true},
		{"numeric common", core.Ident{Collection: core.NumberID(10003)}, "Common", true},
		{"numeric gap", core.Ident{Collection: core.NumberID(15)}, "", false},
		{"string kept", core.Ident{Collection: core.StringID("Stadium")}, "Stadium", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := tt.ident.CollectionName()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	name, ok := core.CollectionName(26)
	assert.True(t, ok)
	assert.Equal(t, "Stadium2020", name)
}
