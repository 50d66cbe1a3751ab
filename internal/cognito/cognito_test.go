package cognito

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	"github.com/jgoulah/bidgely/internal/apierrors"
)

type fakeIDP struct {
	initOut  *cip.InitiateAuthOutput
	initErr  error
	gotInput *cip.InitiateAuthInput
}

func (f *fakeIDP) InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error) {
	f.gotInput = params
	return f.initOut, f.initErr
}

func (f *fakeIDP) RespondToAuthChallenge(ctx context.Context, params *cip.RespondToAuthChallengeInput, optFns ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error) {
	return nil, errors.New("not expected")
}

func newTestAuthenticator(api identityProvider) *SRPAuthenticator {
	a := NewSRPAuthenticator(Pool{Region: "ca-central-1", PoolID: "ca-central-1_TESTPOOL", ClientID: "client123"})
	a.api = api
	a.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return a
}

func TestAuthenticate_DirectResult(t *testing.T) {
	api := &fakeIDP{initOut: &cip.InitiateAuthOutput{
		AuthenticationResult: &types.AuthenticationResultType{
			AccessToken:  aws.String("access"),
			RefreshToken: aws.String("refresh"),
		},
	}}
	a := newTestAuthenticator(api)

	tokens, err := a.Authenticate(context.Background(), "user@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if tokens.AccessToken != "access" || tokens.RefreshToken != "refresh" {
		t.Errorf("unexpected tokens %+v", tokens)
	}
	if api.gotInput.AuthFlow != types.AuthFlowTypeUserSrpAuth {
		t.Errorf("auth flow = %s", api.gotInput.AuthFlow)
	}
	if aws.ToString(api.gotInput.ClientId) != "client123" {
		t.Errorf("client id = %s", aws.ToString(api.gotInput.ClientId))
	}
	if api.gotInput.AuthParameters["USERNAME"] != "user@example.com" {
		t.Errorf("USERNAME = %q", api.gotInput.AuthParameters["USERNAME"])
	}
	if api.gotInput.AuthParameters["SRP_A"] == "" {
		t.Error("SRP_A not sent")
	}
}

func TestAuthenticate_RejectedCredentials(t *testing.T) {
	api := &fakeIDP{initErr: &types.NotAuthorizedException{Message: aws.String("Incorrect username or password.")}}
	a := newTestAuthenticator(api)

	_, err := a.Authenticate(context.Background(), "user", "wrong")
	if !errors.Is(err, apierrors.ErrInvalidAuth) {
		t.Fatalf("expected ErrInvalidAuth, got %v", err)
	}
}

func TestAuthenticate_ServiceFailure(t *testing.T) {
	api := &fakeIDP{initErr: &smithy.GenericAPIError{Code: "InternalErrorException", Fault: smithy.FaultServer}}
	a := newTestAuthenticator(api)

	_, err := a.Authenticate(context.Background(), "user", "pw")
	if !errors.Is(err, apierrors.ErrCannotConnect) {
		t.Fatalf("expected ErrCannotConnect, got %v", err)
	}
	if !apierrors.IsRetryable(err) {
		t.Error("server faults should be retryable")
	}
}

func TestAuthenticate_TransportFailure(t *testing.T) {
	api := &fakeIDP{initErr: context.DeadlineExceeded}
	a := newTestAuthenticator(api)

	_, err := a.Authenticate(context.Background(), "user", "pw")
	if !errors.Is(err, apierrors.ErrCannotConnect) {
		t.Fatalf("expected ErrCannotConnect, got %v", err)
	}
}

func TestAuthenticate_UnsupportedChallenge(t *testing.T) {
	api := &fakeIDP{initOut: &cip.InitiateAuthOutput{ChallengeName: types.ChallengeNameTypeSmsMfa}}
	a := newTestAuthenticator(api)

	_, err := a.Authenticate(context.Background(), "user", "pw")
	if !errors.Is(err, apierrors.ErrInvalidAuth) {
		t.Fatalf("expected ErrInvalidAuth, got %v", err)
	}
}
