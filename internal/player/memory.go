// Package player holds playback backends. Memory keeps all state in process
// and plays nothing; it backs dry runs and tests. The mpv subpackage drives a
// real player.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tessro/markov/internal/core"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("player closed")

// Memory is a silent player.
type Memory struct {
	mu       sync.Mutex
	played   []string
	current  string
	paused   bool
	muted    bool
	volume   int
	position float64
	percent  int
	finished bool
	closed   bool
	failNext error

	rejectNext string
	loadErr    string
}

// NewMemory returns an idle silent player at full volume.
func NewMemory() *Memory {
	return &Memory{volume: 100}
}

func (m *Memory) Play(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	m.played = append(m.played, path)
	m.current = path
	m.paused = false
	m.finished = false
	m.position = 0
	m.percent = 0
	m.loadErr = m.rejectNext
	m.rejectNext = ""
	return nil
}

func (m *Memory) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = ""
	m.finished = false
	m.loadErr = ""
	return nil
}

func (m *Memory) Seek(ctx context.Context, s core.Seek) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == "" {
		return nil
	}
	if s.End {
		m.finished = true
		m.percent = 100
		return nil
	}
	if s.Absolute {
		m.position = s.Seconds
	} else {
		m.position += s.Seconds
	}
	m.position = max(0, m.position)
	return nil
}

func (m *Memory) Paused(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused, nil
}

func (m *Memory) SetPaused(ctx context.Context, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
	return nil
}

func (m *Memory) Muted(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted, nil
}

func (m *Memory) SetMuted(ctx context.Context, muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	return nil
}

func (m *Memory) Volume(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume, nil
}

func (m *Memory) SetVolume(ctx context.Context, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = max(0, min(100, percent))
	return nil
}

func (m *Memory) PercentPos(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.percent, nil
}

func (m *Memory) Finished(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != "" {
		return false, fmt.Errorf("%w: %s", core.ErrUnplayable, m.loadErr)
	}
	return m.finished, nil
}

// Loaded returns the playing path. A rejected song never loads.
func (m *Memory) Loaded(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != "" {
		return "", nil
	}
	return m.current, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.current = ""
	return nil
}

// Finish marks the current song as played to its end.
func (m *Memory) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != "" {
		m.finished = true
		m.percent = 100
	}
}

// SetPercent sets the reported position.
func (m *Memory) SetPercent(p int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.percent = p
}

// RejectNext makes the next Play succeed but never start, the way a player
// reports an unreadable file after accepting it.
func (m *Memory) RejectNext(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectNext = reason
}

// Load starts path as if another client had told the player to play it.
func (m *Memory) Load(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.played = append(m.played, path)
	m.current = path
	m.paused = false
	m.finished = false
	m.position = 0
	m.percent = 0
	m.loadErr = ""
}

// FailNext makes the next Play return err.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Played returns every path started so far, oldest first.
func (m *Memory) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.played...)
}

// Current returns the path being played, if any.
func (m *Memory) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Position returns the current position in seconds.
func (m *Memory) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

var (
	_ core.Player = (*Memory)(nil)
	_ core.Loader = (*Memory)(nil)
)
