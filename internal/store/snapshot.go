package store

import (
	"strings"

	"github.com/devwallet/rpcbroker/internal/orm"
	"github.com/devwallet/rpcbroker/internal/signer"
)

// Settings holds the approval bypass flags.
type Settings struct {
	BypassConnectAuth     bool `json:"bypassConnectAuth"`
	BypassSignatureAuth   bool `json:"bypassSignatureAuth"`
	BypassTransactionAuth bool `json:"bypassTransactionAuth"`
}

// Snapshot is an immutable point-in-time view of the wallet state.
type Snapshot struct {
	Accounts      []orm.Account
	ActiveAccount string
	Networks      []orm.Network
	Network       orm.Network
	Settings      Settings
	Onboarded     bool

	sessions []string
}

func emptySnapshot() *Snapshot {
	return &Snapshot{Network: orm.Network{ChainID: orm.NoChainID, Type: orm.NetworkTypeAnvil}}
}

// NetworkFor returns the network serving rpcURL, falling back to the active network.
func (s *Snapshot) NetworkFor(rpcURL string) orm.Network {
	for _, network := range s.Networks {
		if network.RPCURL == rpcURL {
			return network
		}
	}
	return s.Network
}

// NetworkByChainID returns the first network with chainID.
func (s *Snapshot) NetworkByChainID(chainID int64) (orm.Network, bool) {
	for _, network := range s.Networks {
		if network.ChainID == chainID {
			return network, true
		}
	}
	return orm.Network{}, false
}

// FindAccount resolves an address, case-insensitively.
func (s *Snapshot) FindAccount(address string) *orm.Account {
	return signer.Resolve(s.Accounts, address)
}

// Addresses lists the accounts usable on rpcURL with the active account first.
func (s *Snapshot) Addresses(rpcURL string) []string {
	addresses := make([]string, 0, len(s.Accounts))
	active := -1
	for _, account := range s.Accounts {
		if account.RPCURL != "" && account.RPCURL != rpcURL {
			continue
		}
		if active < 0 && strings.EqualFold(account.Address, s.ActiveAccount) {
			active = len(addresses)
		}
		addresses = append(addresses, account.Address)
	}
	if active > 0 {
		first := addresses[active]
		copy(addresses[1:active+1], addresses[:active])
		addresses[0] = first
	}
	return addresses
}

// HasSession reports whether host has been granted account access.
func (s *Snapshot) HasSession(host string) bool {
	if host == "" {
		return false
	}
	for _, session := range s.sessions {
		if session == host {
			return true
		}
	}
	return false
}

// Sessions returns the hosts holding a session.
func (s *Snapshot) Sessions() []string {
	return append([]string(nil), s.sessions...)
}
