package awssm_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/secretstore/awssm"
	"github.com/sirupsen/logrus"
)

// fake Secrets Manager keeping secrets in a map.
type fakeAPI struct {
	secrets map[string]string
	fail    error

	puts    []string
	creates []string
	deletes []string
}

func notFound() error {
	return &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "fake"}
}

func (f *fakeAPI) PutSecretValue(
	_ context.Context, in *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options),
) (*secretsmanager.PutSecretValueOutput, error) {
	f.puts = append(f.puts, *in.SecretId)
	if f.fail != nil {
		return nil, f.fail
	}
	if _, ok := f.secrets[*in.SecretId]; !ok {
		return nil, notFound()
	}
	f.secrets[*in.SecretId] = *in.SecretString
	return &secretsmanager.PutSecretValueOutput{}, nil
}

func (f *fakeAPI) CreateSecret(
	_ context.Context, in *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options),
) (*secretsmanager.CreateSecretOutput, error) {
	f.creates = append(f.creates, *in.Name)
	f.secrets[*in.Name] = *in.SecretString
	return &secretsmanager.CreateSecretOutput{}, nil
}

func (f *fakeAPI) DeleteSecret(
	_ context.Context, in *secretsmanager.DeleteSecretInput, _ ...func(*secretsmanager.Options),
) (*secretsmanager.DeleteSecretOutput, error) {
	f.deletes = append(f.deletes, *in.SecretId)
	if in.ForceDeleteWithoutRecovery == nil || !*in.ForceDeleteWithoutRecovery {
		return nil, errors.New("deletion should be forced")
	}
	if _, ok := f.secrets[*in.SecretId]; !ok {
		return nil, notFound()
	}
	delete(f.secrets, *in.SecretId)
	return &secretsmanager.DeleteSecretOutput{}, nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestStore(t *testing.T) {
	type credential struct {
		Id     string `json:"id"`
		Secret string `json:"secret"`
	}

	t.Run("it creates missing secret, then updates it", func(t *testing.T) {
		ctx := context.Background()
		api := &fakeAPI{secrets: map[string]string{}}
		testee := awssm.NewWithAPI(api, "pht/", quietLogger())

		if err := testee.Save(ctx, "services/REGISTRY", credential{Id: "a", Secret: "s1"}); err != nil {
			t.Fatal(err)
		}
		if err := testee.Save(ctx, "services/REGISTRY", credential{Id: "a", Secret: "s2"}); err != nil {
			t.Fatal(err)
		}

		if len(api.creates) != 1 || api.creates[0] != "pht/services/REGISTRY" {
			t.Errorf("creates: %v", api.creates)
		}
		if len(api.puts) != 2 {
			t.Errorf("puts: %v", api.puts)
		}
		want := `{"id":"a","secret":"s2"}`
		if got := api.secrets["pht/services/REGISTRY"]; got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("it classifies failure of the service as transient", func(t *testing.T) {
		api := &fakeAPI{secrets: map[string]string{}, fail: errors.New("connection reset")}
		testee := awssm.NewWithAPI(api, "", quietLogger())

		err := testee.Save(context.Background(), "robots/x", credential{})
		if !errors.Is(err, xe.ErrTransientIntegration) {
			t.Errorf("got %v", err)
		}
		if len(api.creates) != 0 {
			t.Errorf("creates: %v", api.creates)
		}
	})

	t.Run("it deletes secret, and tells not found for missing one", func(t *testing.T) {
		ctx := context.Background()
		api := &fakeAPI{secrets: map[string]string{"robots/r": "{}"}}
		testee := awssm.NewWithAPI(api, "", quietLogger())

		if err := testee.Delete(ctx, "robots/r"); err != nil {
			t.Fatal(err)
		}
		if _, ok := api.secrets["robots/r"]; ok {
			t.Error("secret remains")
		}

		if err := testee.Delete(ctx, "robots/r"); !errors.Is(err, xe.ErrNotFound) {
			t.Errorf("got %v, want NotFound", err)
		}
	})
}
