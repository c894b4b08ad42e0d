package amounts

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/perun-network/perun-client-go/pkg/errs"
)

func TestEthToWei(t *testing.T) {
	wei, err := EthToWei("1.5")
	if err != nil {
		t.Fatalf("EthToWei: %v", err)
	}
	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	if wei.Cmp(want) != 0 {
		t.Fatalf("got %s, want %s", wei, want)
	}

	if _, err := EthToWei("not-a-number"); err == nil {
		t.Fatal("expected error for invalid string")
	}
	if _, err := EthToWei(struct{}{}); !errors.Is(err, errs.Internal) {
		t.Fatalf("expected Internal for unsupported type, got %v", err)
	}
}

func TestWeiToEth(t *testing.T) {
	wei, _ := new(big.Int).SetString("2500000000000000000", 10)
	got, err := WeiToEth(wei)
	if err != nil {
		t.Fatalf("WeiToEth: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("got %s", got)
	}

	if _, err := WeiToEth("12x"); err == nil {
		t.Fatal("expected error for invalid string")
	}
	if _, err := WeiToEth(3.5); !errors.Is(err, errs.Internal) {
		t.Fatalf("expected Internal for unsupported type, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	wei, err := EthToWei(int64(3))
	if err != nil {
		t.Fatalf("EthToWei: %v", err)
	}
	eth, err := WeiToEth(wei)
	if err != nil {
		t.Fatalf("WeiToEth: %v", err)
	}
	if !eth.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("round trip mismatch: %s", eth)
	}
}
