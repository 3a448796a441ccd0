package ledger

import "github.com/shopspring/decimal"

// AccountTrading is the account the bot trades from.
const AccountTrading = "trading"

// Account groups currencies under an account type.
type Account struct {
	Type       string
	currencies map[string]*Currency
}

func newAccount(accountType string) *Account {
	return &Account{Type: accountType, currencies: make(map[string]*Currency)}
}

func (a *Account) currency(symbol string) (*Currency, bool) {
	c, ok := a.currencies[symbol]
	return c, ok
}

func (a *Account) balance(symbol string) decimal.Decimal {
	if c, ok := a.currencies[symbol]; ok {
		return c.balance
	}
	return decimal.Zero
}

// setBalance creates the currency lazily and overwrites its balance.
func (a *Account) setBalance(symbol string, balance decimal.Decimal, priceHistoryCap int) *Currency {
	c, ok := a.currencies[symbol]
	if !ok {
		c = newCurrency(symbol, balance, priceHistoryCap)
		a.currencies[symbol] = c
		return c
	}
	c.balance = balance
	return c
}
