package model

// VersionInfo reports what the running service is and what it can reach.
// ProviderKeyStored is true once an encrypted market-data API key is saved;
// the key itself is never returned.
type VersionInfo struct {
	AppVersion        string          `json:"app_version"`
	DbVersion         string          `json:"db_version"`
	Provider          string          `json:"provider"`
	ProviderKeyStored bool            `json:"provider_key_stored"`
	Features          map[string]bool `json:"features"`
}
