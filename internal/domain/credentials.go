package domain

// Credentials identify the OAuth client registered in the Zoho API console.
// They are passed through unchanged to both device-flow calls.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Scope        string
}
