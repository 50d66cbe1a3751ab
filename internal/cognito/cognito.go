// Package cognito authenticates a user against an AWS Cognito user pool with
// the USER_SRP_AUTH flow and returns the pool's token pair.
package cognito

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cognitosrp "github.com/alexrudd/cognito-srp/v4"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	"github.com/jgoulah/bidgely/internal/apierrors"
)

// Tokens is the AuthenticationResult of a successful SRP exchange
type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
}

// Authenticator is the identity-provider hop of a utility login
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Tokens, error)
}

// Pool holds the fixed identifiers of a utility's user pool
type Pool struct {
	Region   string
	PoolID   string
	ClientID string
}

type identityProvider interface {
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	RespondToAuthChallenge(ctx context.Context, params *cip.RespondToAuthChallengeInput, optFns ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error)
}

// SRPAuthenticator runs the SRP exchange against one pool. The AWS client is
// built on first use.
type SRPAuthenticator struct {
	pool Pool
	now  func() time.Time

	once    sync.Once
	api     identityProvider
	initErr error
}

func NewSRPAuthenticator(pool Pool) *SRPAuthenticator {
	return &SRPAuthenticator{pool: pool, now: time.Now}
}

func (a *SRPAuthenticator) client(ctx context.Context) (identityProvider, error) {
	a.once.Do(func() {
		if a.api != nil {
			return
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(a.pool.Region),
			awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
		)
		if err != nil {
			a.initErr = fmt.Errorf("loading AWS config: %w", err)
			return
		}
		a.api = cip.NewFromConfig(cfg)
	})
	return a.api, a.initErr
}

// Authenticate performs InitiateAuth and answers the PASSWORD_VERIFIER challenge
func (a *SRPAuthenticator) Authenticate(ctx context.Context, username, password string) (*Tokens, error) {
	api, err := a.client(ctx)
	if err != nil {
		return nil, apierrors.NewTransportError("cognito-idp", err)
	}

	csrp, err := cognitosrp.NewCognitoSRP(username, password, a.pool.PoolID, a.pool.ClientID, nil)
	if err != nil {
		return nil, &apierrors.AuthError{Endpoint: "cognito-idp", Message: "preparing SRP parameters", Err: err}
	}

	initResp, err := api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserSrpAuth,
		ClientId:       aws.String(csrp.GetClientId()),
		AuthParameters: csrp.GetAuthParams(),
	})
	if err != nil {
		return nil, classify("InitiateAuth", err)
	}
	if initResp.AuthenticationResult != nil {
		return tokensFrom(initResp.AuthenticationResult)
	}
	if initResp.ChallengeName != types.ChallengeNameTypePasswordVerifier {
		return nil, &apierrors.AuthError{
			Endpoint: "cognito-idp",
			Message:  fmt.Sprintf("unsupported challenge %q", initResp.ChallengeName),
		}
	}

	responses, err := csrp.PasswordVerifierChallenge(initResp.ChallengeParameters, a.now())
	if err != nil {
		return nil, &apierrors.AuthError{Endpoint: "cognito-idp", Message: "answering password verifier", Err: err}
	}

	challengeResp, err := api.RespondToAuthChallenge(ctx, &cip.RespondToAuthChallengeInput{
		ChallengeName:      types.ChallengeNameTypePasswordVerifier,
		ChallengeResponses: responses,
		ClientId:           aws.String(csrp.GetClientId()),
		Session:            initResp.Session,
	})
	if err != nil {
		return nil, classify("RespondToAuthChallenge", err)
	}
	if challengeResp.AuthenticationResult == nil {
		return nil, &apierrors.AuthError{
			Endpoint: "cognito-idp",
			Message:  fmt.Sprintf("unexpected challenge %q after password verifier", challengeResp.ChallengeName),
		}
	}
	return tokensFrom(challengeResp.AuthenticationResult)
}

func tokensFrom(res *types.AuthenticationResultType) (*Tokens, error) {
	tokens := &Tokens{
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		IDToken:      aws.ToString(res.IdToken),
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, &apierrors.AuthError{Endpoint: "cognito-idp", Message: "authentication result is missing tokens"}
	}
	return tokens, nil
}

// classify maps credential rejections to AuthError and everything else,
// including transport failures, to ConnectError
func classify(operation string, err error) error {
	var (
		notAuthorized *types.NotAuthorizedException
		userNotFound  *types.UserNotFoundException
		notConfirmed  *types.UserNotConfirmedException
		resetRequired *types.PasswordResetRequiredException
	)
	endpoint := "cognito-idp " + operation
	switch {
	case errors.As(err, &notAuthorized),
		errors.As(err, &userNotFound),
		errors.As(err, &notConfirmed),
		errors.As(err, &resetRequired):
		return &apierrors.AuthError{Endpoint: endpoint, Message: "identity provider rejected credentials", Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &apierrors.ConnectError{
			Endpoint:  endpoint,
			Message:   apiErr.ErrorCode(),
			Retryable: apiErr.ErrorFault() == smithy.FaultServer,
			Err:       err,
		}
	}
	return apierrors.NewTransportError(endpoint, err)
}
