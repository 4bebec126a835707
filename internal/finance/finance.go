// Package finance serves the read-only demo data behind the dashboard,
// cashflow, portfolio, budgets, insights and transactions views. Nothing is
// persisted; every figure is derived from the fixtures in this package.
package finance

import (
	"cmp"
	"errors"
	"math"
	"slices"
	"strings"
	"time"
)

var (
	ErrInvalidSort = errors.New("invalid_sort")
	ErrInvalidType = errors.New("invalid_transaction_type")
)

type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountInvestment AccountType = "investment"
)

type Account struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Institution string      `json:"institution"`
	Type        AccountType `json:"type"`
	Balance     float64     `json:"balance"` // negative for debt
}

type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

type Transaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant"`
	Category    string          `json:"category"`
	Type        TransactionType `json:"type"`
	Amount      float64         `json:"amount"` // always positive, Type carries the sign
	AccountID   string          `json:"account_id"`
}

type Holding struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	AssetClass string  `json:"asset_class"`
	Shares     float64 `json:"shares"`
	Price      float64 `json:"price"`
	CostBasis  float64 `json:"cost_basis"`

	Value      float64 `json:"value"`
	Gain       float64 `json:"gain"`
	GainPct    float64 `json:"gain_pct"`
	Allocation float64 `json:"allocation_pct"`
}

type Portfolio struct {
	Holdings   []Holding          `json:"holdings"`
	TotalValue float64            `json:"total_value"`
	TotalCost  float64            `json:"total_cost"`
	TotalGain  float64            `json:"total_gain"`
	GainPct    float64            `json:"gain_pct"`
	ByClass    map[string]float64 `json:"allocation_by_class"`
}

type budgetLimit struct {
	Category string
	Limit    float64
}

type Budget struct {
	Category   string  `json:"category"`
	Limit      float64 `json:"limit"`
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	PercentUse float64 `json:"percent_used"`
	OverBudget bool    `json:"over_budget"`
}

type BudgetSummary struct {
	Budgets    []Budget `json:"budgets"`
	TotalLimit float64  `json:"total_limit"`
	TotalSpent float64  `json:"total_spent"`
	OverCount  int      `json:"over_budget_count"`
}

type CashflowMonth struct {
	Month    string  `json:"month"` // YYYY-MM
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

type Cashflow struct {
	Months        []CashflowMonth `json:"months"`
	TotalIncome   float64         `json:"total_income"`
	TotalExpenses float64         `json:"total_expenses"`
	Net           float64         `json:"net"`
	SavingsRate   float64         `json:"savings_rate_pct"`
}

type InsightKind string

const (
	InsightTip         InsightKind = "tip"
	InsightWarning     InsightKind = "warning"
	InsightPositive    InsightKind = "positive"
	InsightOpportunity InsightKind = "opportunity"
)

type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

type Insight struct {
	ID     string      `json:"id"`
	Kind   InsightKind `json:"kind"`
	Impact Impact      `json:"impact"`
	Title  string      `json:"title"`
	Body   string      `json:"body"`
}

type Dashboard struct {
	NetWorth           float64         `json:"net_worth"`
	TotalAssets        float64         `json:"total_assets"`
	TotalLiabilities   float64         `json:"total_liabilities"`
	MonthlyIncome      float64         `json:"monthly_income"`
	MonthlyExpenses    float64         `json:"monthly_expenses"`
	SavingsRate        float64         `json:"savings_rate_pct"`
	PortfolioValue     float64         `json:"portfolio_value"`
	Accounts           []Account       `json:"accounts"`
	RecentTransactions []Transaction   `json:"recent_transactions"`
	OverBudget         []Budget        `json:"over_budget"`
	Highlights         []Insight       `json:"highlights"`
	Cashflow           []CashflowMonth `json:"cashflow"`
}

// Filter narrows Transactions. Zero values disable each criterion.
type Filter struct {
	Category string
	Type     TransactionType
	Search   string // case-insensitive match on description or merchant
	Sort     string // date_desc (default), date_asc, amount_desc, amount_asc
	Limit    int
}

// Transaction sort orders.
const (
	SortDateDesc   = "date_desc"
	SortDateAsc    = "date_asc"
	SortAmountDesc = "amount_desc"
	SortAmountAsc  = "amount_asc"
)

// Portfolio sort orders.
const (
	SortByValue      = "value"
	SortByGain       = "gain"
	SortBySymbol     = "symbol"
	SortByAllocation = "allocation"
)

// Book is a read-only set of fixtures.
type Book struct {
	accounts     []Account
	transactions []Transaction
	holdings     []Holding
	budgets      []budgetLimit
	cashflow     []CashflowMonth
	insights     []Insight
}

// Demo returns the built-in demo book.
func Demo() *Book {
	return &Book{
		accounts:     demoAccounts,
		transactions: demoTransactions,
		holdings:     demoHoldings,
		budgets:      demoBudgets,
		cashflow:     demoCashflow,
		insights:     demoInsights,
	}
}

func (b *Book) Accounts() []Account {
	out := slices.Clone(b.accounts)
	value := b.Portfolio("").TotalValue
	for i := range out {
		if out[i].Type == AccountInvestment {
			out[i].Balance = value
		}
	}
	return out
}

func (b *Book) Dashboard() Dashboard {
	d := Dashboard{Accounts: b.Accounts()}

	for _, a := range d.Accounts {
		if a.Balance < 0 {
			d.TotalLiabilities += -a.Balance
		} else {
			d.TotalAssets += a.Balance
		}
	}
	d.TotalAssets = round2(d.TotalAssets)
	d.TotalLiabilities = round2(d.TotalLiabilities)
	d.NetWorth = round2(d.TotalAssets - d.TotalLiabilities)
	d.PortfolioValue = b.Portfolio("").TotalValue

	cf := b.Cashflow(6)
	d.Cashflow = cf.Months
	if n := len(cf.Months); n > 0 {
		last := cf.Months[n-1]
		d.MonthlyIncome = last.Income
		d.MonthlyExpenses = last.Expenses
		d.SavingsRate = percent(last.Net, last.Income)
	}

	recent, _ := b.Transactions(Filter{Limit: 5})
	d.RecentTransactions = recent

	for _, bg := range b.Budgets().Budgets {
		if bg.OverBudget {
			d.OverBudget = append(d.OverBudget, bg)
		}
	}

	for _, in := range b.insights {
		if in.Impact == ImpactHigh || in.Kind == InsightWarning {
			d.Highlights = append(d.Highlights, in)
		}
	}
	return d
}

// Cashflow returns the last months months, oldest first. A non-positive
// count or one larger than the fixture returns every month.
func (b *Book) Cashflow(months int) Cashflow {
	src := b.cashflow
	if months > 0 && months < len(src) {
		src = src[len(src)-months:]
	}

	cf := Cashflow{Months: make([]CashflowMonth, 0, len(src))}
	for _, m := range src {
		m.Net = round2(m.Income - m.Expenses)
		cf.Months = append(cf.Months, m)
		cf.TotalIncome += m.Income
		cf.TotalExpenses += m.Expenses
	}
	cf.TotalIncome = round2(cf.TotalIncome)
	cf.TotalExpenses = round2(cf.TotalExpenses)
	cf.Net = round2(cf.TotalIncome - cf.TotalExpenses)
	cf.SavingsRate = percent(cf.Net, cf.TotalIncome)
	return cf
}

// Portfolio values the holdings and orders them by sortBy (value by
// default). Unknown orders fall back to value; use ValidPortfolioSort to
// reject them up front.
func (b *Book) Portfolio(sortBy string) Portfolio {
	p := Portfolio{ByClass: map[string]float64{}}

	for _, h := range b.holdings {
		h.Value = round2(h.Shares * h.Price)
		h.Gain = round2(h.Value - h.CostBasis)
		h.GainPct = percent(h.Gain, h.CostBasis)
		p.Holdings = append(p.Holdings, h)
		p.TotalValue += h.Value
		p.TotalCost += h.CostBasis
	}
	p.TotalValue = round2(p.TotalValue)
	p.TotalCost = round2(p.TotalCost)
	p.TotalGain = round2(p.TotalValue - p.TotalCost)
	p.GainPct = percent(p.TotalGain, p.TotalCost)

	for i := range p.Holdings {
		h := &p.Holdings[i]
		h.Allocation = percent(h.Value, p.TotalValue)
		p.ByClass[h.AssetClass] = round2(p.ByClass[h.AssetClass] + h.Allocation)
	}

	switch sortBy {
	case SortBySymbol:
		slices.SortStableFunc(p.Holdings, func(a, b Holding) int { return cmp.Compare(a.Symbol, b.Symbol) })
	case SortByGain:
		slices.SortStableFunc(p.Holdings, func(a, b Holding) int { return cmp.Compare(b.Gain, a.Gain) })
	default: // value and allocation order identically
		slices.SortStableFunc(p.Holdings, func(a, b Holding) int { return cmp.Compare(b.Value, a.Value) })
	}
	return p
}

func ValidPortfolioSort(s string) bool {
	switch s {
	case "", SortByValue, SortByGain, SortBySymbol, SortByAllocation:
		return true
	}
	return false
}

// Budgets compares each budget limit with the expenses booked against its
// category.
func (b *Book) Budgets() BudgetSummary {
	spent := map[string]float64{}
	for _, t := range b.transactions {
		if t.Type == TypeExpense {
			spent[t.Category] += t.Amount
		}
	}

	var s BudgetSummary
	for _, l := range b.budgets {
		bg := Budget{
			Category: l.Category,
			Limit:    l.Limit,
			Spent:    round2(spent[l.Category]),
		}
		bg.Remaining = round2(bg.Limit - bg.Spent)
		bg.PercentUse = percent(bg.Spent, bg.Limit)
		bg.OverBudget = bg.Spent > bg.Limit
		if bg.OverBudget {
			s.OverCount++
		}
		s.TotalLimit += bg.Limit
		s.TotalSpent += bg.Spent
		s.Budgets = append(s.Budgets, bg)
	}
	s.TotalLimit = round2(s.TotalLimit)
	s.TotalSpent = round2(s.TotalSpent)
	return s
}

func (b *Book) Insights() []Insight {
	return slices.Clone(b.insights)
}

// Categories lists every transaction category, sorted.
func (b *Book) Categories() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range b.transactions {
		if _, ok := seen[t.Category]; !ok {
			seen[t.Category] = struct{}{}
			out = append(out, t.Category)
		}
	}
	slices.Sort(out)
	return out
}

// Transactions filters and sorts the ledger.
func (b *Book) Transactions(f Filter) ([]Transaction, error) {
	switch f.Type {
	case "", TypeIncome, TypeExpense:
	default:
		return nil, ErrInvalidType
	}

	var less func(a, b Transaction) int
	switch f.Sort {
	case "", SortDateDesc:
		less = func(a, b Transaction) int { return b.Date.Compare(a.Date) }
	case SortDateAsc:
		less = func(a, b Transaction) int { return a.Date.Compare(b.Date) }
	case SortAmountDesc:
		less = func(a, b Transaction) int { return cmp.Compare(b.Amount, a.Amount) }
	case SortAmountAsc:
		less = func(a, b Transaction) int { return cmp.Compare(a.Amount, b.Amount) }
	default:
		return nil, ErrInvalidSort
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]Transaction, 0, len(b.transactions))
	for _, t := range b.transactions {
		if f.Category != "" && !strings.EqualFold(t.Category, f.Category) {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Description), search) &&
			!strings.Contains(strings.ToLower(t.Merchant), search) {
			continue
		}
		out = append(out, t)
	}

	slices.SortStableFunc(out, less)
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return round2(part / whole * 100)
}
