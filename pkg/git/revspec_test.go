package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRevSpec(t *testing.T) {
	for in, want := range map[string]RevSpec{
		"v1.2.3":       {Kind: SingleRev, From: "v1.2.3"},
		"main..feat":   {Kind: RangeRev, From: "main", To: "feat"},
		"..feat":       {Kind: RangeRev, From: "HEAD", To: "feat"},
		"main..":       {Kind: RangeRev, From: "main", To: "HEAD"},
		"main...feat":  {Kind: SymmetricRev, From: "main", To: "feat"},
		"...feat":      {Kind: SymmetricRev, From: "HEAD", To: "feat"},
		"  v1.2.3\n":   {Kind: SingleRev, From: "v1.2.3"},
		"a/b/c...HEAD": {Kind: SymmetricRev, From: "a/b/c", To: "HEAD"},
	} {
		got, err := ParseRevSpec(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}

	for _, in := range []string{"", "   ", "a..b..c", "a...b...c", "a...b..c"} {
		_, err := ParseRevSpec(in)
		assert.Error(t, err, in)
	}
}

func TestRevSpecString(t *testing.T) {
	for _, in := range []string{"v1", "a..b", "a...b"} {
		spec, err := ParseRevSpec(in)
		assert.NoError(t, err)
		assert.Equal(t, in, spec.String())
	}
}
