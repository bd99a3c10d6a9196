package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kjannette/openarb-backend/internal/models"
)

const (
	AddressHeader   = "X-Wallet-Address"
	SignatureHeader = "X-Wallet-Signature"
)

var (
	ErrMissingIdentity = errors.New("missing wallet address")
	ErrInvalidIdentity = errors.New("invalid wallet address")
	ErrBadSignature    = errors.New("wallet signature does not match address")
)

// Resolver turns request headers into a caller principal.
type Resolver struct {
	requireSignature bool
	challenge        string
}

func NewResolver(requireSignature bool, challenge string) *Resolver {
	if challenge == "" {
		challenge = "openarb"
	}
	return &Resolver{requireSignature: requireSignature, challenge: challenge}
}

// Resolve reads the wallet address header and, when signatures are required,
// checks that the signature header was produced by that wallet.
func (r *Resolver) Resolve(req *http.Request) (models.Identity, error) {
	raw := strings.TrimSpace(req.Header.Get(AddressHeader))
	if raw == "" {
		return "", ErrMissingIdentity
	}
	if !common.IsHexAddress(raw) {
		return "", ErrInvalidIdentity
	}
	addr := common.HexToAddress(raw)

	if r.requireSignature {
		sig := strings.TrimSpace(req.Header.Get(SignatureHeader))
		if err := r.verify(addr, sig); err != nil {
			return "", err
		}
	}
	return models.Identity(addr.Hex()), nil
}

// Message is the text a wallet signs to prove control of addr.
func (r *Resolver) Message(addr common.Address) string {
	return fmt.Sprintf("%s:%s", r.challenge, addr.Hex())
}

func (r *Resolver) verify(addr common.Address, sigHex string) error {
	if sigHex == "" {
		return fmt.Errorf("%w: missing %s header", ErrBadSignature, SignatureHeader)
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrBadSignature, crypto.SignatureLength, len(sig))
	}
	// personal_sign produces v in {27,28}; SigToPub expects {0,1}.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash([]byte(r.Message(addr)))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != addr {
		return ErrBadSignature
	}
	return nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(models.Identity)
	return id, ok && id != ""
}
