package s3

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vetting-worker/internal/checks"
)

func TestPayloadKey(t *testing.T) {
	id := uuid.MustParse("6f1c1f5e-4b7a-4d8e-9c3a-2f1e0d9c8b7a")
	assert.Equal(t, "payloads/6f1c1f5e-4b7a-4d8e-9c3a-2f1e0d9c8b7a/rugcheck.json", PayloadKey(id, checks.SourceRugCheck))
}

func TestNew(t *testing.T) {
	c, err := New("localhost:9000", "minio", "minio123", "us-east-1", false, "vetting-payloads")
	require.NoError(t, err)
	assert.Equal(t, "vetting-payloads", c.bucket)
}
