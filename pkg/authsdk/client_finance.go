package authsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Finance views served behind authentication.
const (
	ViewDashboard    = "dashboard"
	ViewCashflow     = "cashflow"
	ViewPortfolio    = "portfolio"
	ViewBudgets      = "budgets"
	ViewInsights     = "insights"
	ViewTransactions = "transactions"
)

// Views lists every finance view.
var Views = []string{ViewDashboard, ViewCashflow, ViewPortfolio, ViewBudgets, ViewInsights, ViewTransactions}

// View fetches a finance view as raw JSON. query carries view options such
// as months, sort or category.
func (c *Client) View(ctx context.Context, token, view string, query url.Values) (json.RawMessage, error) {
	path := "/v1/" + url.PathEscape(view)
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var out json.RawMessage
	if err := c.call(ctx, http.MethodGet, path, token, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}
