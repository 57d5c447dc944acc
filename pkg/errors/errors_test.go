package errors

import (
	"encoding/json"
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOf(t *testing.T) {
	user := &Error{Type: User, Err: errors.New("bad")}
	assert.Equal(t, User, TypeOf(user))
	assert.Equal(t, User, TypeOf(pkgerrors.Wrap(user, "context")))
	assert.Equal(t, Server, TypeOf(errors.New("plain")))
	assert.True(t, IsUser(pkgerrors.Wrap(user, "context")))
	assert.False(t, IsUser(nil))
	assert.True(t, IsMissing(&Error{Type: Missing, Err: errors.New("gone")}))
}

func TestErrorJSON(t *testing.T) {
	in := &Error{Type: Unauthorized, Help: "sign it", Err: errors.New("no key")}
	bytes, err := json.Marshal(in)
	require.NoError(t, err)

	var out Error
	require.NoError(t, json.Unmarshal(bytes, &out))
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, in.Help, out.Help)
	assert.Equal(t, in.Err.Error(), out.Err.Error())
}

func TestCoverAllError(t *testing.T) {
	err := CoverAllError(errors.New("boom"))
	assert.Equal(t, Server, err.Type)
	assert.Contains(t, err.Help, "boom")
}
