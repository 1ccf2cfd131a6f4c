package domain_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

func TestValidateAmount(t *testing.T) {
	cases := []struct {
		raw  string
		want error
	}{
		{raw: "0", want: nil},
		{raw: "12.5", want: nil},
		{raw: "12.50", want: nil},
		{raw: "12.500", want: nil},
		{raw: "9999999999.99", want: nil},
		{raw: "0.005", want: domain.ErrAmountPrecision},
		{raw: "10000000000", want: domain.ErrAmountTooLarge},
		{raw: "-0.01", want: domain.ErrItemPriceInvalid},
	}

	for _, tc := range cases {
		err := domain.ValidateAmount(decimal.RequireFromString(tc.raw))
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.raw, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) || !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("%s: expected %v, got %v", tc.raw, tc.want, err)
		}
	}
}
