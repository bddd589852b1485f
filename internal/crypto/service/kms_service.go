package service

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"gocloud.dev/secrets"
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
)

// KMSSchemes lists the key URI schemes the kms HSM provider accepts. base64key is the
// local keeper meant for development and tests.
var KMSSchemes = []string{"awskms", "azurekeyvault", "gcpkms", "hashivault", "base64key"}

type kmsService struct{}

// NewKMSService creates a KMSService backed by gocloud.dev/secrets.
func NewKMSService() KMSService {
	return &kmsService{}
}

// OpenKeeper opens a keeper for keyURI after checking its scheme is one of KMSSchemes.
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (Keeper, error) {
	u, err := url.Parse(keyURI)
	if err != nil || !slices.Contains(KMSSchemes, u.Scheme) {
		return nil, fmt.Errorf("failed to open KMS keeper: %w: unsupported key uri scheme",
			cryptoDomain.ErrInvalidKMSKeyURI)
	}

	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper (%s): %w", u.Scheme, err)
	}
	return keeper, nil
}
