// Package secrets resolves named secrets from SSM Parameter Store or
// Secrets Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smTypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmTypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMAPI is the subset of the SSM API used to read parameters.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SecretsManagerAPI is the subset of the Secrets Manager API used to read secrets.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SSMResolver reads SecureString or String parameters with decryption.
type SSMResolver struct {
	api SSMAPI
}

func NewSSMResolver(api SSMAPI) *SSMResolver {
	return &SSMResolver{api: api}
}

// Resolve returns the parameter value. A missing parameter, or one with no
// value, reports found=false and no error.
func (r *SSMResolver) Resolve(ctx context.Context, name string) (string, bool, error) {
	out, err := r.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmTypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("GetParameter(%s): %w", name, err)
	}

	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", false, nil
	}
	return *out.Parameter.Value, true, nil
}

// SecretsManagerResolver reads the string value of a secret.
type SecretsManagerResolver struct {
	api SecretsManagerAPI
}

func NewSecretsManagerResolver(api SecretsManagerAPI) *SecretsManagerResolver {
	return &SecretsManagerResolver{api: api}
}

// Resolve returns the secret's SecretString. A missing secret, or a binary
// secret, reports found=false and no error.
func (r *SecretsManagerResolver) Resolve(ctx context.Context, name string) (string, bool, error) {
	out, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var notFound *smTypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("GetSecretValue(%s): %w", name, err)
	}

	if out.SecretString == nil {
		return "", false, nil
	}
	return *out.SecretString, true, nil
}
