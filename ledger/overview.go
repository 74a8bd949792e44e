package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Overview is everything the transactions screen needs on first load.
type Overview struct {
	Page    TransactionPage
	Balance Balance
}

// LoadOverview fetches transactions and balance concurrently. The first
// failure cancels the other request.
func LoadOverview(ctx context.Context, p Provider, q Query) (Overview, error) {
	var ov Overview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		page, err := p.Transactions(gctx, q)
		if err != nil {
			return err
		}
		ov.Page = page
		return nil
	})
	g.Go(func() error {
		bal, err := p.Balance(gctx)
		if err != nil {
			return err
		}
		ov.Balance = bal
		return nil
	})

	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return ov, nil
}

// DateGroup is a run of transactions sharing a calendar day.
type DateGroup struct {
	Label        string
	Transactions []Transaction
}

// GroupByDate buckets transactions by local calendar day, keeping the order
// in which days first appear.
func GroupByDate(txns []Transaction) []DateGroup {
	var groups []DateGroup
	index := make(map[string]int)
	for _, t := range txns {
		label := t.Date.Format("Jan 2, 2006")
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DateGroup{Label: label})
		}
		groups[i].Transactions = append(groups[i].Transactions, t)
	}
	return groups
}

// decimal renders cents the way a float would print: 1250 -> "12.5".
func decimal(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', -1, 64)
}

// MaskAmount hides an amount behind one '*' per printed character.
func MaskAmount(cents int64) string {
	return strings.Repeat("*", len(decimal(cents)))
}

// MaskMerchant keeps the first three characters of a merchant name.
func MaskMerchant(merchant string) string {
	r := []rune(merchant)
	if len(r) > 3 {
		r = r[:3]
	}
	return string(r) + "***"
}

// RevealAmount formats cents as dollars with two decimals.
func RevealAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// Signed prefixes a revealed amount with '-' for debits and '+' for credits.
func Signed(t Transaction) string {
	if t.Kind == Debit {
		return "-" + RevealAmount(t.Amount)
	}
	return "+" + RevealAmount(t.Amount)
}
