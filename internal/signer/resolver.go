package signer

import (
	"crypto/ecdsa"
	"strings"

	"github.com/devwallet/rpcbroker/internal/orm"
)

// Resolve finds the account with address, case-insensitively.
func Resolve(accounts []orm.Account, address string) *orm.Account {
	for i := range accounts {
		if strings.EqualFold(accounts[i].Address, address) {
			return &accounts[i]
		}
	}
	return nil
}

// IsLocal reports whether the account holds its own key.
func IsLocal(account *orm.Account) bool {
	return account != nil && account.Type == orm.AccountTypeLocal && account.PrivateKey != ""
}

// CanSign reports whether account may sign on a network of networkType.
// json-rpc accounts sign only when impersonation is allowed and the network is not remote.
func CanSign(account *orm.Account, networkType orm.NetworkType) bool {
	if account == nil || account.Type != orm.AccountTypeJSONRPC {
		return true
	}
	return networkType != orm.NetworkTypeRemote && account.Impersonate
}

// KeyOf parses the private key of a local account.
func KeyOf(account *orm.Account) (*ecdsa.PrivateKey, error) {
	return ParsePrivateKey(account.PrivateKey)
}
