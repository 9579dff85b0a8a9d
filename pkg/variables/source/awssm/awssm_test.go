package awssm

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikolaikolya/deploy-commander/pkg/variables"
)

type fakeClient struct {
	secrets map[string]*secretsmanager.GetSecretValueOutput
	calls   []string
}

func (f *fakeClient) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	id := aws.ToString(in.SecretId)
	f.calls = append(f.calls, id)
	out, ok := f.secrets[id]
	if !ok {
		return nil, fmt.Errorf("ResourceNotFoundException")
	}
	return out, nil
}

func TestSource_Load(t *testing.T) {
	client := &fakeClient{secrets: map[string]*secretsmanager.GetSecretValueOutput{
		"prod/api":    {SecretString: aws.String(`{"DB_PASSWORD": "hunter2", "POOL": 10}`)},
		"prod/binary": {SecretBinary: []byte(`{"KEY": "v"}`)},
		"prod/plain":  {SecretString: aws.String("not-json")},
		"prod/empty":  {},
	}}
	src := &Source{client: client}
	ctx := context.Background()

	vars, err := src.Load(ctx, "prod/api")
	require.NoError(t, err)
	assert.Equal(t, variables.Map{"DB_PASSWORD": "hunter2", "POOL": "10"}, vars)

	vars, err = src.Load(ctx, "prod/binary")
	require.NoError(t, err)
	assert.Equal(t, variables.Map{"KEY": "v"}, vars)

	_, err = src.Load(ctx, "prod/plain")
	assert.ErrorContains(t, err, "not a JSON object")

	_, err = src.Load(ctx, "prod/empty")
	assert.ErrorContains(t, err, "has no value")

	_, err = src.Load(ctx, "prod/missing")
	assert.ErrorContains(t, err, "ResourceNotFoundException")

	_, err = src.Load(ctx, "")
	assert.Error(t, err)

	assert.Equal(t, []string{"prod/api", "prod/binary", "prod/plain", "prod/empty", "prod/missing"}, client.calls)
}
