package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/fintrack/internal/finance"
	"github.com/aussiebroadwan/fintrack/pkg/httpx"
)

// FinanceHandler serves the read-only demo finance views.
type FinanceHandler struct {
	Book *finance.Book
}

// TransactionsResponse is the body of GET /v1/transactions.
type TransactionsResponse struct {
	Transactions []finance.Transaction `json:"transactions"`
	Categories   []string              `json:"categories"`
	Count        int                   `json:"count"`
}

// HandleDashboard handles GET /v1/dashboard
//
//	@Summary		Dashboard
//	@Tags			Finance
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	finance.Dashboard
//	@Failure		401	{object}	httpx.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/dashboard [get].
func (h *FinanceHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Book.Dashboard())
}

// HandleCashflow handles GET /v1/cashflow
//
//	@Summary		Cashflow
//	@Tags			Finance
//	@Security		BearerAuth
//	@Produce		json
//	@Param			months	query		int	false	"Trailing months to include (default all)"
//	@Success		200		{object}	finance.Cashflow
//	@Failure		400		{object}	httpx.ErrorResponse	"Bad months"
//	@Router			/v1/cashflow [get].
func (h *FinanceHandler) HandleCashflow(w http.ResponseWriter, r *http.Request) {
	months := 0
	if v := r.URL.Query().Get("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			invalidRequest(w, "months must be a positive integer")
			return
		}
		months = n
	}
	httpx.WriteJSON(w, http.StatusOK, h.Book.Cashflow(months))
}

// HandlePortfolio handles GET /v1/portfolio
//
//	@Summary		Portfolio
//	@Tags			Finance
//	@Security		BearerAuth
//	@Produce		json
//	@Param			sort	query		string	false	"value, gain, symbol or allocation"
//	@Success		200		{object}	finance.Portfolio
//	@Failure		400		{object}	httpx.ErrorResponse	"Bad sort"
//	@Router			/v1/portfolio [get].
func (h *FinanceHandler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	sortBy := r.URL.Query().Get("sort")
	if !finance.ValidPortfolioSort(sortBy) {
		writeServiceError(w, r, finance.ErrInvalidSort)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.Book.Portfolio(sortBy))
}

// HandleBudgets handles GET /v1/budgets
//
//	@Summary		Budgets
//	@Tags			Finance
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	finance.BudgetSummary
//	@Router			/v1/budgets [get].
func (h *FinanceHandler) HandleBudgets(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Book.Budgets())
}

// HandleInsights handles GET /v1/insights
//
//	@Summary		Insights
//	@Tags			Finance
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}	finance.Insight
//	@Router			/v1/insights [get].
func (h *FinanceHandler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Book.Insights())
}

// HandleTransactions handles GET /v1/transactions
//
//	@Summary		Transactions
//	@Tags			Finance
//	@Security		BearerAuth
//	@Produce		json
//	@Param			category	query		string	false	"Category"
//	@Param			type		query		string	false	"income or expense"
//	@Param			q			query		string	false	"Search description and merchant"
//	@Param			sort		query		string	false	"date_desc, date_asc, amount_desc or amount_asc"
//	@Param			limit		query		int		false	"Maximum rows"
//	@Success		200			{object}	TransactionsResponse
//	@Failure		400			{object}	httpx.ErrorResponse	"Bad filter"
//	@Router			/v1/transactions [get].
func (h *FinanceHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := finance.Filter{
		Category: q.Get("category"),
		Type:     finance.TransactionType(q.Get("type")),
		Search:   q.Get("q"),
		Sort:     q.Get("sort"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			invalidRequest(w, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	txs, err := h.Book.Transactions(f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, TransactionsResponse{
		Transactions: txs,
		Categories:   h.Book.Categories(),
		Count:        len(txs),
	})
}
