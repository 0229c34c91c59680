package auth

import (
	"time"

	"golang.org/x/oauth2"
)

// DeviceAuthorization holds the response of a device code request.
// It contains the code to show the operator and the parameters needed for polling.
type DeviceAuthorization struct {
	DeviceCode      string
	UserCode        string
	VerificationURL string
	Interval        time.Duration // time to wait before each poll
	ExpiresIn       time.Duration // lifetime of the device code, counted from IssuedAt
	IssuedAt        time.Time
}

// Deadline is the instant after which the device code can no longer be redeemed.
func (a DeviceAuthorization) Deadline() time.Time {
	return a.IssuedAt.Add(a.ExpiresIn)
}

// TokenResult holds the tokens returned after the operator approved the request.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int // seconds the access token is valid for
	APIDomain    string
	IssuedAt     time.Time
}

// Expiry is when the access token stops being valid. Zero if the server did not say.
func (r TokenResult) Expiry() time.Time {
	if r.ExpiresIn <= 0 {
		return time.Time{}
	}
	return r.IssuedAt.Add(time.Duration(r.ExpiresIn) * time.Second)
}

// OAuth2Token converts the result for use with golang.org/x/oauth2 clients.
// The Zoho api_domain is available as tok.Extra("api_domain").
func (r TokenResult) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Expiry:       r.Expiry(),
	}
	return tok.WithExtra(map[string]interface{}{
		"api_domain": r.APIDomain,
	})
}

// PollAttempt describes one round-trip to the token endpoint.
type PollAttempt struct {
	N          int // 1-based
	StatusCode int
	Pending    bool // true when the operator has not finished yet
	At         time.Time
}
