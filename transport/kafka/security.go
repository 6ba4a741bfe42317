package kafka

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
	"github.com/xdg-go/scram"

	"github.com/arloliu/fanin/types"
)

// SASL mechanism names accepted by ConfigureSecurity.
const (
	MechanismPlain       = "PLAIN"
	MechanismSCRAMSHA256 = "SCRAM-SHA-256"
	MechanismSCRAMSHA512 = "SCRAM-SHA-512"
	MechanismAWSMSKIAM   = "AWS_MSK_IAM"
)

// Security describes how the client authenticates with the brokers.
type Security struct {
	// Protocol is PLAINTEXT (default), SSL, SASL_PLAINTEXT or SASL_SSL.
	Protocol string

	// Mechanism is PLAIN, SCRAM-SHA-256, SCRAM-SHA-512 or AWS_MSK_IAM. Used with SASL protocols.
	Mechanism string

	Username string
	Password string

	// Region is the AWS region signing AWS_MSK_IAM tokens. Credentials come from
	// the default AWS credential chain.
	Region string

	// InsecureSkipVerify disables broker certificate verification for SASL_SSL.
	InsecureSkipVerify bool
}

// ConfigureSecurity applies sec to a sarama configuration.
//
// Returns:
//   - error: types.ErrInvalidConfig for an unknown protocol or mechanism
func ConfigureSecurity(sc *sarama.Config, sec Security) error {
	switch strings.ToUpper(sec.Protocol) {
	case "", "PLAINTEXT":
		return nil

	case "SSL":
		enableTLS(sc, sec)
		return nil

	case "SASL_SSL":
		enableTLS(sc, sec)
		return configureSASL(sc, sec)

	case "SASL_PLAINTEXT":
		return configureSASL(sc, sec)

	default:
		return fmt.Errorf("%w: unsupported security protocol %q", types.ErrInvalidConfig, sec.Protocol)
	}
}

func enableTLS(sc *sarama.Config, sec Security) {
	sc.Net.TLS.Enable = true
	sc.Net.TLS.Config = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: sec.InsecureSkipVerify, //nolint:gosec // explicit operator opt-in
	}
}

func configureSASL(sc *sarama.Config, sec Security) error {
	sc.Net.SASL.Enable = true
	sc.Net.SASL.User = sec.Username
	sc.Net.SASL.Password = sec.Password

	switch strings.ToUpper(sec.Mechanism) {
	case "", MechanismPlain:
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	case MechanismSCRAMSHA256:
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{HashGeneratorFcn: sha256Generator()}
		}
	case MechanismSCRAMSHA512:
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{HashGeneratorFcn: sha512Generator()}
		}
	case MechanismAWSMSKIAM:
		if sec.Region == "" {
			return fmt.Errorf("%w: region is required for %s", types.ErrInvalidConfig, MechanismAWSMSKIAM)
		}
		sc.Net.SASL.Mechanism = sarama.SASLTypeOAuth
		// sarama validates User/Password even for OAUTHBEARER
		sc.Net.SASL.User = "token"
		sc.Net.SASL.Password = "token"
		sc.Net.SASL.TokenProvider = &mskTokenProvider{region: sec.Region}
	default:
		return fmt.Errorf("%w: unsupported SASL mechanism %q", types.ErrInvalidConfig, sec.Mechanism)
	}

	return nil
}

// scramClient adapts xdg-go/scram to sarama.SCRAMClient.
type scramClient struct {
	*scram.Client
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

var _ sarama.SCRAMClient = (*scramClient)(nil)

func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	c.Client = client
	c.ClientConversation = client.NewConversation()

	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	return c.ClientConversation.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.ClientConversation.Done()
}

func sha256Generator() scram.HashGeneratorFcn {
	return func() hash.Hash { return sha256.New() }
}

func sha512Generator() scram.HashGeneratorFcn {
	return func() hash.Hash { return sha512.New() }
}

// mskTokenProvider signs AWS MSK IAM tokens for the OAUTHBEARER mechanism.
type mskTokenProvider struct {
	region string
}

var _ sarama.AccessTokenProvider = (*mskTokenProvider)(nil)

func (p *mskTokenProvider) Token() (*sarama.AccessToken, error) {
	token, expiryMs, err := signer.GenerateAuthToken(context.Background(), p.region)
	if err != nil {
		return nil, fmt.Errorf("failed to generate MSK IAM token: %w", err)
	}

	return &sarama.AccessToken{
		Token:      token,
		Extensions: map[string]string{"expiry": strconv.FormatInt(expiryMs, 10)},
	}, nil
}
