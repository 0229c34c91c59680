package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/datawire/dlib/dtime"

	"github.com/waabox/zohoauth/internal/auth"
)

// PollFunc runs the polling half of the device flow until a terminal outcome.
type PollFunc func(ctx context.Context) (auth.TokenResult, error)

// AttemptMsg is sent for every poll attempt reported by the flow.
// It is exported so that tests can inject it directly into WaitModel.Update.
type AttemptMsg auth.PollAttempt

// FlowDoneMsg carries the terminal outcome of the poll.
type FlowDoneMsg struct {
	Result auth.TokenResult
	Err    error
}

// tickMsg refreshes the countdown.
type tickMsg struct{}

// WaitModel is the Bubbletea model shown while the operator approves the request.
type WaitModel struct {
	code     auth.DeviceAuthorization
	poll     PollFunc
	attempts <-chan auth.PollAttempt
	ctx      context.Context
	cancel   context.CancelFunc
	now      func() time.Time

	list   AttemptListModel
	done   bool
	result auth.TokenResult
	err    error
}

// NewWaitModel creates the waiting screen model. attempts may be nil.
func NewWaitModel(ctx context.Context, code auth.DeviceAuthorization, poll PollFunc, attempts <-chan auth.PollAttempt) WaitModel {
	ctx, cancel := context.WithCancel(ctx)
	return WaitModel{
		code:     code,
		poll:     poll,
		attempts: attempts,
		ctx:      ctx,
		cancel:   cancel,
		now:      dtime.Now,
		list:     NewAttemptListModel(code.IssuedAt),
	}
}

// Init starts polling, the attempt listener and the countdown.
func (m WaitModel) Init() tea.Cmd {
	return tea.Batch(m.runPoll(), m.waitForAttempt(), tickEvery(time.Second))
}

func (m WaitModel) runPoll() tea.Cmd {
	return func() tea.Msg {
		result, err := m.poll(m.ctx)
		return FlowDoneMsg{Result: result, Err: err}
	}
}

// waitForAttempt blocks on the attempts channel and turns one report into a message.
func (m WaitModel) waitForAttempt() tea.Cmd {
	if m.attempts == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case a, ok := <-m.attempts:
			if !ok {
				return nil
			}
			return AttemptMsg(a)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(_ time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update handles all incoming messages and key events.
func (m WaitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case AttemptMsg:
		m.list = m.list.Add(auth.PollAttempt(msg))
		return m, m.waitForAttempt()

	case FlowDoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		m.cancel()
		return m, tea.Quit

	case tickMsg:
		if m.done {
			return m, nil
		}
		return m, tickEvery(time.Second)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.cancel()
			m.done = true
			m.err = context.Canceled
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the waiting screen.
func (m WaitModel) View() string {
	header := " zohoauth | Device Authorization\n"
	separator := "────────────────────────────────────────────────────────────\n"

	var body string
	switch {
	case m.done && m.err == nil:
		body = "\n Authorized.\n\n"
	case m.done:
		body = fmt.Sprintf("\n Error: %v\n\n", m.err)
	default:
		body = fmt.Sprintf(
			"\n Visit:       %s\n"+
				" Enter code:  %s\n\n"+
				" Expires in:  %s\n"+
				" Polling every %s\n\n",
			m.code.VerificationURL, m.code.UserCode,
			formatRemaining(m.code.Deadline().Sub(m.now())), m.code.Interval)
	}

	footer := " q: cancel\n"
	return header + separator + body + m.list.View() + separator + footer
}

// Result returns the terminal outcome once the program has exited.
func (m WaitModel) Result() (auth.TokenResult, error) {
	if !m.done {
		return auth.TokenResult{}, fmt.Errorf("waiting screen exited before the flow finished")
	}
	return m.result, m.err
}

func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// Run shows the waiting screen on out until poll returns or the operator cancels.
func Run(ctx context.Context, code auth.DeviceAuthorization, poll PollFunc, attempts <-chan auth.PollAttempt, out io.Writer) (auth.TokenResult, error) {
	p := tea.NewProgram(NewWaitModel(ctx, code, poll, attempts), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return auth.TokenResult{}, fmt.Errorf("running waiting screen: %w", err)
	}
	return final.(WaitModel).Result()
}
