package request

// SetProviderKeyRequest carries the market-data API key to store encrypted.
type SetProviderKeyRequest struct {
	APIKey string `json:"apiKey"`
}
