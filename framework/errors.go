package framework

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrConfig            = errors.New("invalid configuration")
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrTransaction       = errors.New("transaction failed")
	ErrInsufficientFunds = errors.New("deployer account has no funds")
)

// ConfigError reports a network profile or setting that cannot be used.
type ConfigError struct {
	Network string
	Field   string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Network == "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("config: network %q: %s: %s", e.Network, e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// ArtifactError wraps a failure to resolve a contract build artifact.
type ArtifactError struct {
	Name string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("artifact %q: %v", e.Name, e.Err)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// TransactionError wraps a network, signing or on-chain failure. Op is one
// of "dial", "submit" or "confirm".
type TransactionError struct {
	Op     string
	TxHash common.Hash
	Err    error
}

func (e *TransactionError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s tx %s: %v", e.Op, e.TxHash.Hex(), e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

func (e *TransactionError) Is(target error) bool {
	return target == ErrTransaction
}
