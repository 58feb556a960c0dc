package passphrase

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSource(env map[string]string, terminal bool, secret string, readErr error) (*Source, *int) {
	reads := 0
	s := NewSource("COFFEE_PASS", "")
	s.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	s.isTerminal = func() bool { return terminal }
	s.readSecret = func() ([]byte, error) {
		reads++
		return []byte(secret), readErr
	}
	s.stderr = io.Discard
	return s, &reads
}

func TestSourcePrefersEnvironment(t *testing.T) {
	s, reads := testSource(map[string]string{"COFFEE_PASS": "hunter2"}, true, "ignored", nil)
	got, err := s.Get()
	require.NoError(t, err)
	require.Equal(t, "hunter2", got)
	require.Zero(t, *reads)
}

func TestSourceRejectsEmptyEnvironment(t *testing.T) {
	s, _ := testSource(map[string]string{"COFFEE_PASS": "  "}, true, "x", nil)
	_, err := s.Get()
	require.ErrorContains(t, err, "set but empty")
}

func TestSourcePromptsOnceAndCaches(t *testing.T) {
	s, reads := testSource(nil, true, "typed", nil)
	for i := 0; i < 3; i++ {
		got, err := s.Get()
		require.NoError(t, err)
		require.Equal(t, "typed", got)
	}
	require.Equal(t, 1, *reads)
}

func TestSourceFailures(t *testing.T) {
	s, _ := testSource(nil, false, "", nil)
	_, err := s.Get()
	require.ErrorContains(t, err, "COFFEE_PASS")

	s, _ = testSource(nil, true, " ", nil)
	_, err = s.Get()
	require.ErrorContains(t, err, "cannot be empty")

	s, _ = testSource(nil, true, "", errors.New("tty gone"))
	_, err = s.Get()
	require.ErrorContains(t, err, "tty gone")
}
