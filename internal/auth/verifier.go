package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/chatline-server/internal/core"
	"github.com/vovakirdan/chatline-server/internal/store"
)

// TrustedVerifier accepts a client-supplied user id as the connect
// credential, checking only that the account exists. Enable it with
// session.trust_client_identity for clients that cannot fetch a connect token.
type TrustedVerifier struct {
	users store.UserStore
}

var _ core.IdentityVerifier = (*TrustedVerifier)(nil)

// NewTrustedVerifier creates a verifier backed by users.
func NewTrustedVerifier(users store.UserStore) *TrustedVerifier {
	return &TrustedVerifier{users: users}
}

func (v *TrustedVerifier) VerifyConnect(ctx context.Context, credential string) (string, error) {
	u, err := v.users.GetUserByID(ctx, credential)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", core.ErrUnknownUser
		}
		return "", fmt.Errorf("get user: %w", err)
	}
	return u.ID, nil
}
