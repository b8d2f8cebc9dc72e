package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abduss/tribute/internal/config"
)

func TestPublicReadPolicy(t *testing.T) {
	var policy struct {
		Statement []struct {
			Effect   string
			Action   []string
			Resource []string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(PublicReadPolicy("tribute-public")), &policy))
	require.Len(t, policy.Statement, 1)

	st := policy.Statement[0]
	assert.Equal(t, "Allow", st.Effect)
	assert.Equal(t, []string{"s3:GetObject"}, st.Action)
	assert.Equal(t, []string{"arn:aws:s3:::tribute-public/*"}, st.Resource)
}

func TestNewMinIOClientAddsDefaultPort(t *testing.T) {
	client, err := NewMinIOClient(config.MinIOConfig{Endpoint: "minio", AccessKeyID: "k", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "minio:9000", client.EndpointURL().Host)
}
