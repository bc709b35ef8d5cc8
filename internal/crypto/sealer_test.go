package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_OpenWithSamePassphrase(t *testing.T) {
	s, err := NewSealer("hunter2", 1000)
	require.NoError(t, err)

	blob, err := s.Seal([]byte(`{"https://staging.omenium.app/api":"tok"}`))
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "tok\"")

	got, err := s.Open(blob)
	require.NoError(t, err)
	assert.Equal(t, `{"https://staging.omenium.app/api":"tok"}`, string(got))
}

func TestSealer_WrongPassphrase(t *testing.T) {
	s, _ := NewSealer("right", 1000)
	blob, err := s.Seal([]byte("secret"))
	require.NoError(t, err)

	other, _ := NewSealer("wrong", 1000)
	_, err = other.Open(blob)
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestSealer_RejectsEmptyPassphraseAndGarbage(t *testing.T) {
	_, err := NewSealer("", 0)
	assert.Error(t, err)

	s, _ := NewSealer("p", 1000)
	_, err = s.Open([]byte("not json"))
	assert.Error(t, err)
	_, err = s.Open([]byte(`{"version":9}`))
	assert.Error(t, err)
}
