package payment

import (
	"fmt"
	"strings"
)

// assetDecimals is the decimal precision of the settlement asset (USDC).
const assetDecimals = 6

// Known settlement networks and their USDC asset contracts.
const (
	NetworkBase        = "base"
	NetworkBaseSepolia = "base-sepolia"
)

var assetByNetwork = map[string]string{
	NetworkBase:        "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	NetworkBaseSepolia: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
}

// AssetForNetwork returns the settlement asset contract for a network, or an
// error for networks the gateway does not know how to price.
func AssetForNetwork(network string) (string, error) {
	asset, ok := assetByNetwork[network]
	if !ok {
		return "", fmt.Errorf("payment: unsupported settlement network %q", network)
	}
	return asset, nil
}

// ParsePrice converts a display price such as "$0.001" into the atomic
// amount string the payment protocol uses ("1000" for a 6-decimal asset).
// The amount must be positive and cannot be more precise than the asset.
func ParsePrice(display string) (string, error) {
	s := strings.TrimSpace(display)
	if !strings.HasPrefix(s, "$") {
		return "", fmt.Errorf("payment: price %q must start with $", display)
	}
	s = s[1:]
	if s == "" {
		return "", fmt.Errorf("payment: price %q has no amount", display)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return "", fmt.Errorf("payment: price %q is not a decimal amount", display)
	}
	if len(frac) > assetDecimals {
		return "", fmt.Errorf("payment: price %q exceeds %d decimal places", display, assetDecimals)
	}

	// Scale to atomic units: pad the fraction out to the asset precision.
	frac += strings.Repeat("0", assetDecimals-len(frac))
	atomic := strings.TrimLeft(whole+frac, "0")
	if atomic == "" {
		return "", fmt.Errorf("payment: price %q must be positive", display)
	}
	return atomic, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
