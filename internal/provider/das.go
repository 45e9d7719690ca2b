package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
)

const (
	dasMethodAssetsByOwner = "getAssetsByOwner"
	dasPageLimit           = 1000
)

type dasDisplayOptions struct {
	ShowFungible      bool `json:"showFungible"`
	ShowNativeBalance bool `json:"showNativeBalance"`
}

type dasAssetsByOwnerParams struct {
	OwnerAddress   string            `json:"ownerAddress"`
	Page           int               `json:"page"`
	Limit          int               `json:"limit"`
	DisplayOptions dasDisplayOptions `json:"displayOptions"`
}

type dasAssetsResult struct {
	Total         int        `json:"total"`
	Limit         int        `json:"limit"`
	Page          int        `json:"page"`
	Items         []dasAsset `json:"items"`
	NativeBalance *struct {
		Lamports uint64 `json:"lamports"`
	} `json:"nativeBalance"`
}

type dasAsset struct {
	ID      string `json:"id"`
	Content struct {
		Metadata struct {
			Name   string `json:"name"`
			Symbol string `json:"symbol"`
		} `json:"metadata"`
	} `json:"content"`
	TokenInfo *struct {
		Symbol    string `json:"symbol"`
		Balance   uint64 `json:"balance"`
		Decimals  int    `json:"decimals"`
		PriceInfo *struct {
			PricePerToken decimal.Decimal `json:"price_per_token"`
			TotalPrice    decimal.Decimal `json:"total_price"`
		} `json:"price_info"`
	} `json:"token_info"`
}

// DASClient reads native and fungible balances through the Digital Asset Standard API.
type DASClient struct {
	rpc Caller
}

// NewDASClient creates a DAS client over a JSON-RPC caller.
func NewDASClient(rpc Caller) *DASClient {
	return &DASClient{rpc: rpc}
}

// GetAssetsByOwner returns the owner's native lamports and fungible token holdings.
// Every failure is reported with a transient kind so callers retry it.
func (c *DASClient) GetAssetsByOwner(ctx context.Context, owner string) (models.Holdings, error) {
	var holdings models.Holdings

	for page := 1; ; page++ {
		var res dasAssetsResult
		err := c.rpc.Call(ctx, dasMethodAssetsByOwner, dasAssetsByOwnerParams{
			OwnerAddress: owner,
			Page:         page,
			Limit:        dasPageLimit,
			DisplayOptions: dasDisplayOptions{
				ShowFungible:      true,
				ShowNativeBalance: true,
			},
		}, &res)
		if err != nil {
			if ctx.Err() == nil && !config.IsTransient(err) {
				err = config.NewNetworkError(dasMethodAssetsByOwner, err)
			}
			return models.Holdings{}, fmt.Errorf("assets of %s: %w", owner, err)
		}

		if page == 1 && res.NativeBalance != nil {
			holdings.NativeLamports = res.NativeBalance.Lamports
		}
		for _, item := range res.Items {
			if h, ok := toHolding(item); ok {
				holdings.Tokens = append(holdings.Tokens, h)
			}
		}

		if len(res.Items) < dasPageLimit {
			break
		}
	}

	slog.Debug("assets fetched",
		"owner", owner,
		"nativeLamports", holdings.NativeLamports,
		"tokens", len(holdings.Tokens),
	)
	return holdings, nil
}

// toHolding keeps fungible items only. The symbol comes from metadata, then token_info.
func toHolding(item dasAsset) (models.TokenHolding, bool) {
	ti := item.TokenInfo
	if ti == nil {
		return models.TokenHolding{}, false
	}

	symbol := item.Content.Metadata.Symbol
	if symbol == "" {
		symbol = ti.Symbol
	}

	h := models.TokenHolding{
		Mint:      item.ID,
		Symbol:    symbol,
		RawAmount: ti.Balance,
		Decimals:  ti.Decimals,
		Balance:   models.TokenAmount(ti.Balance, ti.Decimals),
	}
	if ti.PriceInfo != nil {
		h.TotalPriceUSD = ti.PriceInfo.TotalPrice
	}
	return h, true
}
