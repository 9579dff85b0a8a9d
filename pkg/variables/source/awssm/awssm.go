// Package awssm loads variables from AWS Secrets Manager.
//
// A reference such as awssm://prod/api names the secret "prod/api". The
// secret string must be a flat JSON object; non-string values keep their
// JSON text.
package awssm

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/Nikolaikolya/deploy-commander/pkg/variables"
)

// Scheme is the reference scheme handled by this source.
const Scheme = "awssm"

func init() {
	variables.RegisterSource(Scheme, func() (variables.Source, error) {
		return New(context.Background())
	})
}

type secretGetter interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Source reads secrets through a Secrets Manager client.
type Source struct {
	client secretGetter
}

// New creates a source from the default AWS credential chain. The region
// falls back to us-east-1 when none is configured.
func New(ctx context.Context) (*Source, error) {
	var opts []func(*config.LoadOptions) error
	if os.Getenv("AWS_REGION") == "" && os.Getenv("AWS_DEFAULT_REGION") == "" {
		opts = append(opts, config.WithRegion("us-east-1"))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if endpoint := os.Getenv("AWS_SECRETSMANAGER_ENDPOINT"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &Source{client: client}, nil
}

// Load fetches the current version of the secret named by ref.
func (s *Source) Load(ctx context.Context, ref string) (variables.Map, error) {
	if ref == "" {
		return nil, fmt.Errorf("secret id is empty")
	}

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", ref, err)
	}

	var data []byte
	switch {
	case out.SecretString != nil:
		data = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		data = out.SecretBinary
	default:
		return nil, fmt.Errorf("secret %s has no value", ref)
	}

	vars, err := variables.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("secret %s is not a JSON object: %w", ref, err)
	}
	return vars, nil
}
