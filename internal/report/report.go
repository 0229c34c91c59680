// Package report renders the outcome of a device flow for the operator.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/waabox/zohoauth/internal/auth"
)

// Env is the set of variables the integration server reads at startup.
type Env struct {
	ClientID         string
	ClientSecret     string
	RefreshToken     string
	AccountServerURL string
}

// WriteEnv writes env as KEY=value lines, ready to paste into a .env file.
// The key order is fixed.
func WriteEnv(w io.Writer, env Env) error {
	_, err := fmt.Fprintf(w,
		"CLIENT_ID=%s\nCLIENT_SECRET=%s\nREFRESH_TOKEN=%s\nACCOUNT_SERVER_URL=%s\n",
		env.ClientID, env.ClientSecret, env.RefreshToken, env.AccountServerURL)
	return err
}

// WriteSummary writes a human-readable description of the issued tokens.
func WriteSummary(w io.Writer, result auth.TokenResult) error {
	tok := result.OAuth2Token()
	expires := "unknown"
	if !tok.Expiry.IsZero() {
		expires = fmt.Sprintf("%d seconds (at %s)", result.ExpiresIn, tok.Expiry.Local().Format(time.RFC3339))
	}
	_, err := fmt.Fprintf(w,
		"\n=== TOKEN INFORMATION ===\n"+
			"Access Token:  %s\n"+
			"Refresh Token: %s\n"+
			"Expires In:    %s\n"+
			"API Domain:    %s\n",
		tok.AccessToken, tok.RefreshToken, expires, tok.Extra("api_domain"))
	return err
}

// WritePrompt tells the operator where to approve the request.
func WritePrompt(w io.Writer, da auth.DeviceAuthorization) error {
	_, err := fmt.Fprintf(w,
		"Visit:      %s\n"+
			"Enter code: %s\n"+
			"This code will expire in %s.\n"+
			"Waiting for authorization...\n",
		da.VerificationURL, da.UserCode, da.ExpiresIn)
	return err
}
