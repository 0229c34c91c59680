package tui_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/waabox/zohoauth/internal/auth"
	"github.com/waabox/zohoauth/internal/domain"
	"github.com/waabox/zohoauth/internal/tui"
)

func testCode() auth.DeviceAuthorization {
	return auth.DeviceAuthorization{
		DeviceCode:      "1004.device",
		UserCode:        "ABCD-1234",
		VerificationURL: "https://accounts.zoho.com/oauth/v3/device",
		Interval:        10 * time.Second,
		ExpiresIn:       10 * time.Minute,
		IssuedAt:        time.Now(),
	}
}

func neverPoll(ctx context.Context) (auth.TokenResult, error) {
	<-ctx.Done()
	return auth.TokenResult{}, ctx.Err()
}

func TestWait_ViewShowsCodeAndURL(t *testing.T) {
	m := tui.NewWaitModel(context.Background(), testCode(), neverPoll, nil)
	view := m.View()
	for _, want := range []string{"ABCD-1234", "https://accounts.zoho.com/oauth/v3/device", "Expires in", "10s"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view, got:\n%s", want, view)
		}
	}
}

func TestWait_AttemptMsgAddsRow(t *testing.T) {
	m := tui.NewWaitModel(context.Background(), testCode(), neverPoll, nil)
	updated, _ := m.Update(tui.AttemptMsg{N: 1, StatusCode: 400, Pending: true})
	view := updated.(tui.WaitModel).View()
	if !strings.Contains(view, "#1") || !strings.Contains(view, "pending") {
		t.Errorf("expected attempt row in view, got:\n%s", view)
	}
}

func TestWait_FlowDoneQuitsWithResult(t *testing.T) {
	m := tui.NewWaitModel(context.Background(), testCode(), neverPoll, nil)
	updated, cmd := m.Update(tui.FlowDoneMsg{Result: auth.TokenResult{RefreshToken: "1000.refresh"}})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	result, err := updated.(tui.WaitModel).Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RefreshToken != "1000.refresh" {
		t.Errorf("refresh token: want '1000.refresh', got '%s'", result.RefreshToken)
	}
	if !strings.Contains(updated.(tui.WaitModel).View(), "Authorized") {
		t.Error("expected success message in view")
	}
}

func TestWait_FlowErrorIsReported(t *testing.T) {
	m := tui.NewWaitModel(context.Background(), testCode(), neverPoll, nil)
	updated, _ := m.Update(tui.FlowDoneMsg{Err: &domain.TimeoutError{ExpiresIn: 10 * time.Minute}})
	_, err := updated.(tui.WaitModel).Result()
	if !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected expiry error, got %v", err)
	}
	if !strings.Contains(updated.(tui.WaitModel).View(), "timed out") {
		t.Errorf("expected error in view, got:\n%s", updated.(tui.WaitModel).View())
	}
}

func TestWait_QuitKeyCancels(t *testing.T) {
	m := tui.NewWaitModel(context.Background(), testCode(), neverPoll, nil)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	_, err := updated.(tui.WaitModel).Result()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWait_ResultBeforeDoneIsError(t *testing.T) {
	m := tui.NewWaitModel(context.Background(), testCode(), neverPoll, nil)
	if _, err := m.Result(); err == nil {
		t.Fatal("expected error before the flow finished")
	}
}

func TestWait_PollCommandDeliversOutcome(t *testing.T) {
	poll := func(ctx context.Context) (auth.TokenResult, error) {
		return auth.TokenResult{AccessToken: "a", RefreshToken: "r"}, nil
	}
	attempts := make(chan auth.PollAttempt, 1)
	attempts <- auth.PollAttempt{N: 1, StatusCode: 200}
	m := tui.NewWaitModel(context.Background(), testCode(), poll, attempts)

	msg := m.Init()()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		t.Fatalf("expected tea.BatchMsg from Init, got %T", msg)
	}
	var sawDone, sawAttempt bool
	for _, cmd := range batch {
		if cmd == nil {
			continue
		}
		switch got := cmd().(type) {
		case tui.FlowDoneMsg:
			sawDone = got.Err == nil && got.Result.RefreshToken == "r"
		case tui.AttemptMsg:
			sawAttempt = got.N == 1
		}
	}
	if !sawDone {
		t.Error("expected FlowDoneMsg carrying the token")
	}
	if !sawAttempt {
		t.Error("expected AttemptMsg from the attempts channel")
	}
}
