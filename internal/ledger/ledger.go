// Package ledger is the client side of the hunt registry: hunts,
// registrations and winner tokens.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"TH_treasure_hunt/internal/model"
)

var (
	ErrHuntNotFound      = errors.New("hunt not found on ledger")
	ErrAlreadyRegistered = errors.New("address already registered for hunt")
	ErrAlreadyWinner     = errors.New("address already recorded as winner")
	ErrUnknownNetwork    = errors.New("unknown network")
)

type Client interface {
	CreateHunt(ctx context.Context, hunt *model.Hunt) (int64, error)
	RegisterForHunt(ctx context.Context, huntID int64, address string) (string, error)
	AddWinner(ctx context.Context, huntID int64, address string) (int64, error)
	GetHunt(ctx context.Context, huntID int64) (*model.Hunt, error)
	GetAllHunts(ctx context.Context) ([]*model.Hunt, error)
	GetTokenID(ctx context.Context, huntID int64, address string) (int64, error)
}

type Network struct {
	Key     string `mapstructure:"key" json:"key"`
	Name    string `mapstructure:"name" json:"name"`
	ChainID int64  `mapstructure:"chainId" json:"chain_id"`
}

var DefaultNetworks = map[string]Network{
	"paseoAssetHub": {Key: "paseoAssetHub", Name: "Paseo AssetHub", ChainID: 420420422},
	"baseSepolia":   {Key: "baseSepolia", Name: "Base Sepolia", ChainID: 84532},
	"moonbaseAlpha": {Key: "moonbaseAlpha", Name: "Moonbase Alpha", ChainID: 1287},
}

// ResolveNetwork looks key up in networks, falling back to DefaultNetworks.
// Keys match case-insensitively since config loaders lowercase map keys.
func ResolveNetwork(networks map[string]Network, key string) (Network, error) {
	if k, n, ok := lookupNetwork(networks, key); ok && n.ChainID != 0 {
		if n.Key == "" {
			n.Key = k
		}
		return n, nil
	}
	if _, n, ok := lookupNetwork(DefaultNetworks, key); ok {
		return n, nil
	}

	known := make([]string, 0, len(networks)+len(DefaultNetworks))
	for k := range DefaultNetworks {
		known = append(known, k)
	}
	for k := range networks {
		if _, ok := DefaultNetworks[k]; !ok {
			known = append(known, k)
		}
	}
	sort.Strings(known)

	return Network{}, fmt.Errorf("%w %q (known: %v)", ErrUnknownNetwork, key, known)
}

func lookupNetwork(networks map[string]Network, key string) (string, Network, bool) {
	if n, ok := networks[key]; ok {
		return key, n, true
	}
	for k, n := range networks {
		if strings.EqualFold(k, key) {
			return k, n, true
		}
	}
	return "", Network{}, false
}
