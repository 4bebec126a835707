package finance

import "time"

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var demoAccounts = []Account{
	{ID: "acc_checking", Name: "Everyday Checking", Institution: "Harbor Bank", Type: AccountChecking, Balance: 8420.55},
	{ID: "acc_savings", Name: "High Yield Savings", Institution: "Harbor Bank", Type: AccountSavings, Balance: 24150.00},
	{ID: "acc_credit", Name: "Rewards Card", Institution: "Northwind Credit", Type: AccountCredit, Balance: -1286.40},
	{ID: "acc_brokerage", Name: "Brokerage", Institution: "Summit Invest", Type: AccountInvestment, Balance: 0}, // valued from holdings
}

var demoTransactions = []Transaction{
	{ID: "txn_001", Date: day(2024, 6, 28), Description: "Salary June", Merchant: "Acme Corp", Category: "Income", Type: TypeIncome, Amount: 6200.00, AccountID: "acc_checking"},
	{ID: "txn_002", Date: day(2024, 6, 27), Description: "Weekly groceries", Merchant: "Fresh Market", Category: "Groceries", Type: TypeExpense, Amount: 142.87, AccountID: "acc_credit"},
	{ID: "txn_003", Date: day(2024, 6, 26), Description: "Electricity bill", Merchant: "City Power", Category: "Utilities", Type: TypeExpense, Amount: 96.30, AccountID: "acc_checking"},
	{ID: "txn_004", Date: day(2024, 6, 25), Description: "Dinner with friends", Merchant: "Trattoria Roma", Category: "Dining", Type: TypeExpense, Amount: 84.50, AccountID: "acc_credit"},
	{ID: "txn_005", Date: day(2024, 6, 24), Description: "Monthly rent", Merchant: "Parkside Apartments", Category: "Housing", Type: TypeExpense, Amount: 2100.00, AccountID: "acc_checking"},
	{ID: "txn_006", Date: day(2024, 6, 22), Description: "Streaming subscription", Merchant: "StreamFlix", Category: "Entertainment", Type: TypeExpense, Amount: 15.99, AccountID: "acc_credit"},
	{ID: "txn_007", Date: day(2024, 6, 21), Description: "Fuel", Merchant: "QuickFuel", Category: "Transport", Type: TypeExpense, Amount: 58.20, AccountID: "acc_credit"},
	{ID: "txn_008", Date: day(2024, 6, 20), Description: "Freelance design project", Merchant: "Bluebird Studio", Category: "Income", Type: TypeIncome, Amount: 850.00, AccountID: "acc_checking"},
	{ID: "txn_009", Date: day(2024, 6, 19), Description: "Coffee beans", Merchant: "Roastery Lane", Category: "Dining", Type: TypeExpense, Amount: 24.00, AccountID: "acc_credit"},
	{ID: "txn_010", Date: day(2024, 6, 18), Description: "Gym membership", Merchant: "Peak Fitness", Category: "Health", Type: TypeExpense, Amount: 49.00, AccountID: "acc_checking"},
	{ID: "txn_011", Date: day(2024, 6, 16), Description: "Weekly groceries", Merchant: "Fresh Market", Category: "Groceries", Type: TypeExpense, Amount: 131.45, AccountID: "acc_credit"},
	{ID: "txn_012", Date: day(2024, 6, 15), Description: "Transfer to savings", Merchant: "Harbor Bank", Category: "Savings", Type: TypeExpense, Amount: 750.00, AccountID: "acc_checking"},
	{ID: "txn_013", Date: day(2024, 6, 14), Description: "Concert tickets", Merchant: "TicketHub", Category: "Entertainment", Type: TypeExpense, Amount: 180.00, AccountID: "acc_credit"},
	{ID: "txn_014", Date: day(2024, 6, 12), Description: "Pharmacy", Merchant: "WellCare Pharmacy", Category: "Health", Type: TypeExpense, Amount: 32.75, AccountID: "acc_credit"},
	{ID: "txn_015", Date: day(2024, 6, 10), Description: "Train pass", Merchant: "Metro Transit", Category: "Transport", Type: TypeExpense, Amount: 120.00, AccountID: "acc_checking"},
	{ID: "txn_016", Date: day(2024, 6, 8), Description: "Dividend payout", Merchant: "Summit Invest", Category: "Income", Type: TypeIncome, Amount: 64.12, AccountID: "acc_brokerage"},
	{ID: "txn_017", Date: day(2024, 6, 7), Description: "Takeaway", Merchant: "Noodle Bar", Category: "Dining", Type: TypeExpense, Amount: 38.60, AccountID: "acc_credit"},
	{ID: "txn_018", Date: day(2024, 6, 5), Description: "Internet", Merchant: "FiberNet", Category: "Utilities", Type: TypeExpense, Amount: 70.00, AccountID: "acc_checking"},
	{ID: "txn_019", Date: day(2024, 6, 3), Description: "Weekly groceries", Merchant: "Fresh Market", Category: "Groceries", Type: TypeExpense, Amount: 156.10, AccountID: "acc_credit"},
	{ID: "txn_020", Date: day(2024, 6, 1), Description: "New running shoes", Merchant: "Stride Sports", Category: "Shopping", Type: TypeExpense, Amount: 129.95, AccountID: "acc_credit"},
}

var demoHoldings = []Holding{
	{Symbol: "VTI", Name: "Vanguard Total Stock Market ETF", AssetClass: "US Equity", Shares: 42, Price: 262.10, CostBasis: 8950.00},
	{Symbol: "VXUS", Name: "Vanguard Total International Stock ETF", AssetClass: "International Equity", Shares: 60, Price: 60.45, CostBasis: 3420.00},
	{Symbol: "BND", Name: "Vanguard Total Bond Market ETF", AssetClass: "Bonds", Shares: 55, Price: 72.30, CostBasis: 4125.00},
	{Symbol: "AAPL", Name: "Apple Inc.", AssetClass: "US Equity", Shares: 12, Price: 210.62, CostBasis: 1980.00},
	{Symbol: "MSFT", Name: "Microsoft Corp.", AssetClass: "US Equity", Shares: 6, Price: 446.95, CostBasis: 2010.00},
	{Symbol: "BTC", Name: "Bitcoin", AssetClass: "Crypto", Shares: 0.05, Price: 61500.00, CostBasis: 2200.00},
}

var demoBudgets = []budgetLimit{
	{Category: "Groceries", Limit: 500},
	{Category: "Dining", Limit: 200},
	{Category: "Transport", Limit: 250},
	{Category: "Entertainment", Limit: 150},
	{Category: "Utilities", Limit: 200},
	{Category: "Health", Limit: 120},
	{Category: "Shopping", Limit: 300},
}

var demoCashflow = []CashflowMonth{
	{Month: "2023-07", Income: 6480.00, Expenses: 4710.20},
	{Month: "2023-08", Income: 6350.00, Expenses: 5120.45},
	{Month: "2023-09", Income: 6200.00, Expenses: 4390.10},
	{Month: "2023-10", Income: 6900.00, Expenses: 4875.60},
	{Month: "2023-11", Income: 6200.00, Expenses: 5240.00},
	{Month: "2023-12", Income: 7800.00, Expenses: 6930.75},
	{Month: "2024-01", Income: 6200.00, Expenses: 4105.35},
	{Month: "2024-02", Income: 6450.00, Expenses: 4380.90},
	{Month: "2024-03", Income: 6200.00, Expenses: 4620.15},
	{Month: "2024-04", Income: 7100.00, Expenses: 4510.80},
	{Month: "2024-05", Income: 6200.00, Expenses: 4298.40},
	{Month: "2024-06", Income: 7114.12, Expenses: 4199.71},
}

var demoInsights = []Insight{
	{
		ID: "ins_dining", Kind: InsightWarning, Impact: ImpactMedium,
		Title: "Dining is trending up",
		Body:  "You spent more on dining this month than your three-month average. Cooking two extra meals a week would bring you back under budget.",
	},
	{
		ID: "ins_savings_rate", Kind: InsightPositive, Impact: ImpactHigh,
		Title: "Strong savings rate",
		Body:  "You kept over 40% of your income this month. At this pace your emergency fund reaches six months of expenses by December.",
	},
	{
		ID: "ins_subscriptions", Kind: InsightTip, Impact: ImpactLow,
		Title: "Review your subscriptions",
		Body:  "One streaming subscription renewed this month. Check whether you still use every recurring service.",
	},
	{
		ID: "ins_allocation", Kind: InsightTip, Impact: ImpactMedium,
		Title: "Portfolio leans on US equity",
		Body:  "More than half of your portfolio is in US equity. Consider whether that still matches your target allocation.",
	},
	{
		ID: "ins_idle_cash", Kind: InsightOpportunity, Impact: ImpactMedium,
		Title: "Idle cash in checking",
		Body:  "Your checking balance is well above one month of expenses. Moving the surplus to savings would earn more interest.",
	},
}
