package credential

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/golang-jwt/jwt/v5"

	"github.com/imrishuroy/go-cimit-stub/internal/aws"
)

// KeyProvider supplies the P-256 key credentials are signed with.
type KeyProvider interface {
	SigningKey(ctx context.Context) (*ecdsa.PrivateKey, error)
}

// StaticKeyProvider always returns the same key.
type StaticKeyProvider struct {
	key *ecdsa.PrivateKey
}

func NewStaticKeyProvider(key *ecdsa.PrivateKey) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// StaticKeyFromMaterial parses material (see ParsePrivateKey) once.
func StaticKeyFromMaterial(material string) (*StaticKeyProvider, error) {
	key, err := ParsePrivateKey(material)
	if err != nil {
		return nil, err
	}
	return NewStaticKeyProvider(key), nil
}

func (p *StaticKeyProvider) SigningKey(context.Context) (*ecdsa.PrivateKey, error) {
	if p.key == nil {
		return nil, errors.New("no signing key configured")
	}
	return p.key, nil
}

// SSMKeyProvider reads the key from a SecureString parameter on every call.
type SSMKeyProvider struct {
	client aws.SSMAPI
	name   string
}

func NewSSMKeyProvider(client aws.SSMAPI, parameterName string) *SSMKeyProvider {
	return &SSMKeyProvider{client: client, name: parameterName}
}

func (p *SSMKeyProvider) SigningKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	decrypt := true
	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &p.name,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return nil, fmt.Errorf("get parameter %s: %w", p.name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("parameter %s has no value", p.name)
	}
	return ParsePrivateKey(*out.Parameter.Value)
}

// ParsePrivateKey accepts a PEM block (PKCS#8 or SEC 1) or base64 DER
// (PKCS#8 or SEC 1) and requires the key to be on P-256.
func ParsePrivateKey(material string) (*ecdsa.PrivateKey, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, errors.New("empty key material")
	}

	var key *ecdsa.PrivateKey
	if strings.HasPrefix(material, "-----BEGIN") {
		k, err := jwt.ParseECPrivateKeyFromPEM([]byte(material))
		if err != nil {
			return nil, fmt.Errorf("parse PEM key: %w", err)
		}
		key = k
	} else {
		der, err := base64.StdEncoding.DecodeString(material)
		if err != nil {
			return nil, fmt.Errorf("decode base64 key: %w", err)
		}
		if key, err = parseDER(der); err != nil {
			return nil, err
		}
	}

	if key.Curve.Params().Name != "P-256" {
		return nil, fmt.Errorf("signing key is on %s, want P-256", key.Curve.Params().Name)
	}
	return key, nil
}

func parseDER(der []byte) (*ecdsa.PrivateKey, error) {
	if parsed, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		key, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("signing key is %T, want ECDSA", parsed)
		}
		return key, nil
	}
	key, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse DER key: %w", err)
	}
	return key, nil
}
