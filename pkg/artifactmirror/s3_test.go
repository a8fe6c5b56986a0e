package artifactmirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReturnsNilWithoutBucket(t *testing.T) {
	m, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMirrorDirNoopOnNilReceiver(t *testing.T) {
	var m *S3Mirror
	assert.NoError(t, m.MirrorDir(context.Background(), "job_x", t.TempDir()))
}
