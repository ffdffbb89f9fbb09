// Package scheduler выполняет отложенные колбэки на одном логическом потоке.
// Loop работает по реальному времени, Manual — по виртуальным часам (для тестов).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/iseevalue/chat/internal/logger"
)

// Task — запланированный колбэк. Stop возвращает true, если колбэк ещё не был поставлен в очередь.
type Task interface {
	Stop() bool
}

// Scheduler планирует колбэки и отдаёт текущее время своих часов.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Task
	Now() time.Time
}

const defaultQueueSize = 256

// Loop — планировщик реального времени: таймеры кладут колбэки в одну очередь,
// которую Run разбирает на единственной горутине.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	timers  map[*loopTask]struct{}
	stopped bool
}

// NewLoop создаёт цикл с очередью размера queueSize (<= 0 — значение по умолчанию).
func NewLoop(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Loop{
		queue:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		timers: make(map[*loopTask]struct{}),
	}
}

func (l *Loop) Now() time.Time { return time.Now() }

func (l *Loop) AfterFunc(d time.Duration, fn func()) Task {
	t := &loopTask{loop: l}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return t
	}
	l.timers[t] = struct{}{}
	t.timer = time.AfterFunc(d, func() {
		if !l.forget(t) {
			return
		}
		select {
		case l.queue <- fn:
		case <-l.done:
		}
	})
	return t
}

// Run выполняет колбэки до отмены ctx. После выхода все ожидающие таймеры остановлены.
func (l *Loop) Run(ctx context.Context) {
	defer l.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.queue:
			l.exec(fn)
		}
	}
}

// Pending — число таймеров, которые ещё не сработали.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			logger.Errorf("scheduler: panic in task: %v", err)
		}
	}()
	fn()
}

func (l *Loop) forget(t *loopTask) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.timers[t]; !ok {
		return false
	}
	delete(l.timers, t)
	return true
}

func (l *Loop) shutdown() {
	l.once.Do(func() {
		close(l.done)
		l.mu.Lock()
		l.stopped = true
		timers := l.timers
		l.timers = make(map[*loopTask]struct{})
		l.mu.Unlock()
		for t := range timers {
			t.timer.Stop()
		}
		if n := len(timers); n > 0 {
			logger.Debugf("scheduler: stopped %d pending tasks", n)
		}
	})
}

type loopTask struct {
	loop  *Loop
	timer *time.Timer
}

func (t *loopTask) Stop() bool {
	if t.timer == nil {
		return false
	}
	t.timer.Stop()
	return t.loop.forget(t)
}
