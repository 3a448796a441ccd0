package clients

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

const mainnetURL = "https://api.hyperliquid.xyz"

// HyperliquidClient holds a signing exchange client and the address derived from its key.
type HyperliquidClient struct {
	exchange    *hyperliquid.Exchange
	accountAddr string
}

// NewHyperliquidClient derives the account address from a hex private key
// (with or without 0x prefix) and builds a signing exchange client.
func NewHyperliquidClient(privateKeyHex, baseURL string) (*HyperliquidClient, error) {
	privateKey, accountAddr, err := accountFromKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = mainnetURL
	}

	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return &HyperliquidClient{exchange: ex, accountAddr: accountAddr}, nil
}

func accountFromKey(privateKeyHex string) (*ecdsa.PrivateKey, string, error) {
	key := strings.TrimSpace(privateKeyHex)
	key = strings.TrimPrefix(strings.TrimPrefix(key, "0x"), "0X")

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, "", errors.Wrap(err, "invalid hyperliquid private key")
	}

	pub, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, "", errors.New("error casting public key to ECDSA")
	}

	return privateKey, crypto.PubkeyToAddress(*pub).Hex(), nil
}

func (c *HyperliquidClient) Exchange() *hyperliquid.Exchange { return c.exchange }
func (c *HyperliquidClient) Info() *hyperliquid.Info         { return c.exchange.Info() }
func (c *HyperliquidClient) AccountAddress() string          { return c.accountAddr }
