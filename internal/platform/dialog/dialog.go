// Package dialog decouples action logic from how the user is asked things.
// Actions receive a Dialog and get structured answers back; the terminal,
// flag presets and tests each provide their own implementation.
package dialog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrNoAnswer is returned when input ends before the user answers.
var ErrNoAnswer = errors.New("no answer")

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Dialog asks the user for confirmation or text and shows notifications.
type Dialog interface {
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, question string) (bool, error)
	// Prompt asks for free text. ok is false when the user cancels.
	Prompt(ctx context.Context, question string) (answer string, ok bool, err error)
	// Notify shows a message.
	Notify(ctx context.Context, level Level, message string)
}

// Terminal reads answers line by line from in and writes to out.
type Terminal struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoAnswer
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s [y/N]: ", question)
	line, err := t.readLine(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "c", "co", "có":
		return true, nil
	default:
		return false, nil
	}
}

// Prompt treats a single "." as cancel, since an empty line is a valid
// (empty) answer.
func (t *Terminal) Prompt(ctx context.Context, question string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s (\".\" to cancel): ", question)
	line, err := t.readLine(ctx)
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(line) == "." {
		return "", false, nil
	}
	return strings.TrimSpace(line), true, nil
}

func (t *Terminal) Notify(_ context.Context, level Level, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch level {
	case LevelSuccess:
		fmt.Fprintf(t.out, "✔ %s\n", message)
	case LevelError:
		fmt.Fprintf(t.out, "✘ %s\n", message)
	default:
		fmt.Fprintf(t.out, "%s\n", message)
	}
}

// Preset answers from values fixed up front (command-line flags) and
// falls back to another Dialog for anything not preset.
type Preset struct {
	AssumeYes bool
	Answers   map[string]string
	Fallback  Dialog
	Out       io.Writer
}

func (p *Preset) Confirm(ctx context.Context, question string) (bool, error) {
	if p.AssumeYes {
		return true, nil
	}
	if p.Fallback == nil {
		return false, ErrNoAnswer
	}
	return p.Fallback.Confirm(ctx, question)
}

func (p *Preset) Prompt(ctx context.Context, question string) (string, bool, error) {
	if v, ok := p.Answers[question]; ok {
		return v, true, nil
	}
	if v, ok := p.Answers["*"]; ok {
		return v, true, nil
	}
	if p.Fallback == nil {
		return "", false, ErrNoAnswer
	}
	return p.Fallback.Prompt(ctx, question)
}

func (p *Preset) Notify(ctx context.Context, level Level, message string) {
	if p.Fallback != nil {
		p.Fallback.Notify(ctx, level, message)
		return
	}
	if p.Out != nil {
		fmt.Fprintf(p.Out, "[%s] %s\n", level, message)
	}
}

// Notice is one recorded notification.
type Notice struct {
	Level   Level
	Message string
}

// Recorder is a scripted Dialog that records what it was asked.
type Recorder struct {
	mu        sync.Mutex
	Confirms  []bool
	Prompts   []*string
	Questions []string
	Notices   []Notice
}

func (r *Recorder) Confirm(_ context.Context, question string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Questions = append(r.Questions, question)
	if len(r.Confirms) == 0 {
		return false, ErrNoAnswer
	}
	ans := r.Confirms[0]
	r.Confirms = r.Confirms[1:]
	return ans, nil
}

// Prompt pops the next scripted answer; a nil entry means cancel.
func (r *Recorder) Prompt(_ context.Context, question string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Questions = append(r.Questions, question)
	if len(r.Prompts) == 0 {
		return "", false, ErrNoAnswer
	}
	ans := r.Prompts[0]
	r.Prompts = r.Prompts[1:]
	if ans == nil {
		return "", false, nil
	}
	return *ans, true, nil
}

func (r *Recorder) Notify(_ context.Context, level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notices = append(r.Notices, Notice{Level: level, Message: message})
}

// Last returns the most recent notice, or a zero Notice.
func (r *Recorder) Last() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Notices) == 0 {
		return Notice{}
	}
	return r.Notices[len(r.Notices)-1]
}

// Answer is a helper for building Recorder.Prompts.
func Answer(s string) *string {
	return &s
}
