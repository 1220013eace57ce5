/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package unlawful

import (
	"context"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/datastore"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/node"
)

const vladimirRemoteAddr = "vladimir"

// Vladimir runs a node that claims to be another one. Unless he stole the target's decrypting key he
// can't open the target's authorizations. With the stolen key he still signs as himself, so the
// authorizations aren't addressed to him.
type Vladimir struct {
	ursula *node.Ursula
	target *network.NodeInfo
}

// VladimirOption configures Vladimir.
type VladimirOption func(cfg *node.Config)

// WithStolenDecrypter gives Vladimir the target's decrypting key.
func WithStolenDecrypter(decrypter *crypto.Decrypter) VladimirOption {
	return func(cfg *node.Config) {
		cfg.Decrypter = decrypter
	}
}

// FromTargetUrsula returns a Vladimir impersonating target, with fresh keys of his own.
func FromTargetUrsula(target *network.NodeInfo, ds *datastore.Datastore, opts ...VladimirOption) (*Vladimir, error) {
	cfg := &node.Config{
		Signer:        crypto.NewSigner(crypto.GenerateSecretKey()),
		Decrypter:     crypto.NewDecrypter(crypto.GenerateSecretKey()),
		Datastore:     ds,
		URL:           target.URL,
		FederatedOnly: true,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	ursula, err := node.New(cfg)
	if err != nil {
		return nil, err
	}

	return &Vladimir{ursula: ursula, target: target}, nil
}

// PublicInformation returns the identity Vladimir claims, which is the target's.
func (v *Vladimir) PublicInformation() *network.NodeInfo {
	claimed := *v.target

	return &claimed
}

// ChecksumAddress returns the address Vladimir's own signing key gives him.
func (v *Vladimir) ChecksumAddress() string {
	return v.ursula.ChecksumAddress()
}

// Session returns the state of Vladimir's node.
func (v *Vladimir) Session() *node.Session {
	return v.ursula.Session()
}

// Intercept returns a client that delivers everything meant for the target to Vladimir instead.
func (v *Vladimir) Intercept(client network.Client) network.Client {
	return &interceptor{Client: client, vladimir: v}
}

type interceptor struct {
	network.Client

	vladimir *Vladimir
}

func (i *interceptor) ConsiderArrangement(ctx context.Context, info *network.NodeInfo,
	arrangement []byte) ([]byte, error) {
	if !i.targets(info) {
		return i.Client.ConsiderArrangement(ctx, info, arrangement)
	}

	return resultBody(i.vladimir.ursula.ConsiderArrangement(ctx, arrangement))
}

func (i *interceptor) Reencrypt(ctx context.Context, info *network.NodeInfo, request []byte) ([]byte, error) {
	if !i.targets(info) {
		return i.Client.Reencrypt(ctx, info, request)
	}

	return resultBody(i.vladimir.ursula.HandleReencryption(ctx, request, vladimirRemoteAddr))
}

func (i *interceptor) RevokeArrangement(ctx context.Context, info *network.NodeInfo, revocation []byte) error {
	if !i.targets(info) {
		return i.Client.RevokeArrangement(ctx, info, revocation)
	}

	_, err := resultBody(i.vladimir.ursula.HandleRevocation(ctx, revocation))

	return err
}

func (i *interceptor) targets(info *network.NodeInfo) bool {
	return info.ChecksumAddress == i.vladimir.target.ChecksumAddress
}

func resultBody(result *node.Result) ([]byte, error) {
	if result.Status != node.StatusOK {
		return nil, &network.UnexpectedResponseError{
			StatusCode: result.Status.HTTPCode(),
			Message:    string(result.Reason) + ": " + result.Message,
		}
	}

	return result.Body, nil
}
