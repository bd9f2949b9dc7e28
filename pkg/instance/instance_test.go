package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv(EnvWorkerID, " publisher-2 ")
	assert.Equal(t, "publisher-2", GetID())
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv(EnvWorkerID, "")
	assert.NotEmpty(t, GetID())
}
