package amounts

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/perun-network/perun-client-go/pkg/errs"
)

// weiDecimals is the number of decimal places between ETH and wei.
const weiDecimals = 18

// weiPerEth is 10^18 as a decimal.
var weiPerEth = decimal.New(1, weiDecimals)

// EthToWei converts an ETH amount to wei. Accepted input types: string,
// float64, int64, decimal.Decimal, *decimal.Decimal. Sub-wei precision is
// truncated.
func EthToWei(amount any) (*big.Int, error) {
	var eth decimal.Decimal
	switch v := amount.(type) {
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, err, "parsing amount %q", v)
		}
		eth = parsed
	case float64:
		eth = decimal.NewFromFloat(v)
	case int64:
		eth = decimal.NewFromInt(v)
	case decimal.Decimal:
		eth = v
	case *decimal.Decimal:
		eth = *v
	default:
		return nil, errs.New(errs.Internal, "unsupported amount type %T", amount)
	}
	return eth.Mul(weiPerEth).BigInt(), nil
}

// WeiToEth converts a wei amount into ETH. Accepted input types: string
// (decimal digits), *big.Int, int.
func WeiToEth(value any) (decimal.Decimal, error) {
	wei := new(big.Int)
	switch v := value.(type) {
	case string:
		if _, ok := wei.SetString(v, 10); !ok {
			return decimal.Zero, errs.New(errs.Internal, "parsing wei value %q", v)
		}
	case *big.Int:
		wei.Set(v)
	case int:
		wei.SetInt64(int64(v))
	default:
		return decimal.Zero, errs.New(errs.Internal, "unsupported wei type %T", value)
	}
	return decimal.NewFromBigInt(wei, -weiDecimals), nil
}
