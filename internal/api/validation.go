package api

import (
	"fmt"
	"strings"
)

func (r ProductCreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if strings.TrimSpace(r.UnderlyingAsset) == "" {
		return fmt.Errorf("underlyingAsset is required")
	}
	if strings.TrimSpace(r.Admin) == "" {
		return fmt.Errorf("admin is required")
	}
	if strings.TrimSpace(r.Treasury) == "" {
		return fmt.Errorf("treasury is required")
	}
	if r.EndTime < r.StartTime {
		return fmt.Errorf("endTime must not precede startTime")
	}
	if r.QuotePeriod <= 0 {
		return fmt.Errorf("quotePeriod must be greater than 0")
	}
	if r.MinDeposit.IsNegative() {
		return fmt.Errorf("minDeposit must not be negative")
	}
	return nil
}

func (r QuoteSetRequest) Validate() error {
	if r.Amount.Sign() <= 0 {
		return fmt.Errorf("amount must be greater than 0")
	}
	return nil
}

func (r DepositRequest) Validate() error {
	if r.Amount.Sign() <= 0 {
		return fmt.Errorf("amount must be greater than 0")
	}
	if r.ExpectedQuote.Sign() <= 0 {
		return fmt.Errorf("expectedQuote must be greater than 0")
	}
	return nil
}

func (r RedemptionFundRequest) Validate() error {
	if r.Amount.Sign() <= 0 {
		return fmt.Errorf("amount must be greater than 0")
	}
	return nil
}

func (r WithdrawRequest) Validate() error {
	if r.Shares.Sign() <= 0 {
		return fmt.Errorf("shares must be greater than 0")
	}
	return nil
}

func (r StopRequest) Validate() error {
	if r.Stopped == nil {
		return fmt.Errorf("stopped is required")
	}
	return nil
}

func (r TreasuryRequest) Validate() error {
	if strings.TrimSpace(r.Treasury) == "" {
		return fmt.Errorf("treasury is required")
	}
	return nil
}

func (r AdminRequest) Validate() error {
	if strings.TrimSpace(r.Admin) == "" {
		return fmt.Errorf("admin is required")
	}
	return nil
}
