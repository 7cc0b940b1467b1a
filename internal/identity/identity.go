package identity

// Identity represents an authenticated end user as reported by the
// OAuth2 provider. It is constructed once per successful callback and
// never mutated afterwards. Nothing here is persisted; downstream
// applications decide what to store.
type Identity struct {
	// Subject is the provider-assigned stable identifier for the user.
	Subject string `json:"id"`
	// Email as reported by the provider, may be empty.
	Email string `json:"email,omitempty"`
	// Name is the user's display name, may be empty.
	Name string `json:"name,omitempty"`
	// Provider identifies which identity source issued this identity.
	Provider string `json:"provider"`
	// Raw holds unvalidated extra provider fields, kept for
	// forward-compatibility. Not carried inside session tokens.
	Raw map[string]any `json:"provider_data,omitempty"`
}
