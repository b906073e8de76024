package marketdata

// Response represents the raw JSON response structure from the Yahoo Finance chart API.
//
// Only the metadata block is decoded: regularMarketPrice is the latest quote
// for equities, funds, crypto pairs and currency pairs ("EURUSD=X") alike.
type Response struct {
	Chart Chart `json:"chart"`
}

// Chart wraps the result list and the optional API error.
type Chart struct {
	Result []Result  `json:"result"`
	Error  *APIError `json:"error"`
}

// Result is one instrument in a chart response.
type Result struct {
	Meta Meta `json:"meta"`
}

// Meta carries the instrument's identity and latest quote.
type Meta struct {
	Currency           string  `json:"currency"`
	Symbol             string  `json:"symbol"`
	ExchangeName       string  `json:"exchangeName"`
	InstrumentType     string  `json:"instrumentType"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	RegularMarketTime  int64   `json:"regularMarketTime"`
}

// APIError is the error object Yahoo embeds in a chart response.
type APIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
