package pepper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMAPI is the subset of the SSM client the backend uses.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, in *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	DeleteParameters(ctx context.Context, in *ssm.DeleteParametersInput, optFns ...func(*ssm.Options)) (*ssm.DeleteParametersOutput, error)
}

// SSMBackend stores pepper material as one SecureString parameter,
// <prefix>/pepper, holding the same PEM record as FileBackend. Save never
// overwrites, so concurrent first use settles on a single generation.
type SSMBackend struct {
	client   SSMAPI
	prefix   string
	kmsKeyID string
}

// NewSSMBackend wraps an existing client. kmsKeyID may be empty to use the
// account's default SSM key.
func NewSSMBackend(client SSMAPI, prefix, kmsKeyID string) *SSMBackend {
	return &SSMBackend{client: client, prefix: strings.TrimRight(prefix, "/"), kmsKeyID: kmsKeyID}
}

// NewSSMBackendFromConfig loads the default AWS configuration for region.
func NewSSMBackendFromConfig(ctx context.Context, region, prefix, kmsKeyID string) (*SSMBackend, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewSSMBackend(ssm.NewFromConfig(cfg), prefix, kmsKeyID), nil
}

func (b *SSMBackend) name() string { return b.prefix + "/pepper" }

func (b *SSMBackend) Load(ctx context.Context) (*Material, error) {
	param, err := b.get(ctx, b.name())
	if err != nil {
		return nil, err
	}
	m, err := decodeMaterial([]byte(aws.ToString(param.Value)))
	if err != nil {
		return nil, err
	}
	if m.CreatedAt.IsZero() && param.LastModifiedDate != nil {
		m.CreatedAt = param.LastModifiedDate.UTC()
	}
	return m, nil
}

func (b *SSMBackend) Save(ctx context.Context, m *Material) error {
	data, err := encodeMaterial(m)
	if err != nil {
		return err
	}
	in := &ssm.PutParameterInput{
		Name:      aws.String(b.name()),
		Value:     aws.String(string(data)),
		Type:      types.ParameterTypeSecureString,
		Overwrite: aws.Bool(false),
	}
	if b.kmsKeyID != "" {
		in.KeyId = aws.String(b.kmsKeyID)
	}
	if _, err := b.client.PutParameter(ctx, in); err != nil {
		var exists *types.ParameterAlreadyExists
		if errors.As(err, &exists) {
			return ErrPepperExists
		}
		return fmt.Errorf("put parameter %s: %w", b.name(), err)
	}
	return nil
}

func (b *SSMBackend) Delete(ctx context.Context) error {
	_, err := b.client.DeleteParameters(ctx, &ssm.DeleteParametersInput{
		Names: []string{b.name()},
	})
	if err != nil {
		return fmt.Errorf("delete pepper parameter: %w", err)
	}
	return nil
}

func (b *SSMBackend) get(ctx context.Context, name string) (*types.Parameter, error) {
	out, err := b.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var nf *types.ParameterNotFound
		if errors.As(err, &nf) {
			return nil, ErrPepperNotFound
		}
		return nil, fmt.Errorf("get parameter %s: %w", name, err)
	}
	if out.Parameter == nil {
		return nil, ErrPepperNotFound
	}
	return out.Parameter, nil
}
