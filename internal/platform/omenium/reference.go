package omenium

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// Categories fetches the full category forest.
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	body, err := c.doJSON(ctx, http.MethodGet, pathCategories+"?tree=true", "", nil)
	if err != nil {
		return nil, fmt.Errorf("omenium: fetch categories: %w", err)
	}
	var roots []domain.Category
	if err := json.Unmarshal(unwrap(body), &roots); err != nil {
		return nil, fmt.Errorf("omenium: decode categories: %w", err)
	}
	return roots, nil
}

// Oracles fetches the oracle list. Valid hex addresses are returned in
// their EIP-55 checksummed form.
func (c *Client) Oracles(ctx context.Context) ([]domain.Oracle, error) {
	body, err := c.doJSON(ctx, http.MethodGet, pathOracles, "", nil)
	if err != nil {
		return nil, fmt.Errorf("omenium: fetch oracles: %w", err)
	}
	var oracles []domain.Oracle
	if err := json.Unmarshal(unwrap(body), &oracles); err != nil {
		return nil, fmt.Errorf("omenium: decode oracles: %w", err)
	}
	for i := range oracles {
		oracles[i].Address = c.normalizeAddress(ctx, oracles[i])
	}
	return oracles, nil
}

func (c *Client) normalizeAddress(ctx context.Context, o domain.Oracle) string {
	if !common.IsHexAddress(o.Address) {
		if o.Address != "" {
			c.logger.DebugContext(ctx, "oracle address is not a hex address",
				slog.Int64("oracle_id", o.ID),
				slog.String("address", o.Address),
			)
		}
		return o.Address
	}
	return common.HexToAddress(o.Address).Hex()
}
