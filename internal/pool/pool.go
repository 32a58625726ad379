// Package pool bounds how many external model inferences run at once and
// serializes work on a single work-item key.
package pool

import (
	"context"
	"sync"
)

// Pool - семафор на фиксированное число слотов инференса.
// Сабмит при занятых слотах встает в очередь, а не отваливается:
// каждый аплоад должен получить ровно один ответ, даже ценой ожидания.
type Pool struct {
	slots chan struct{}
}

func New(limit int) *Pool {
	if limit <= 0 {
		limit = 5
	}
	return &Pool{slots: make(chan struct{}, limit)}
}

// Run blocks until a slot is free, then executes task to completion.
// Контекст действует только на ожидание слота: начатый инференс не отменяется,
// дисконнект клиента не должен терять уже оплаченную работу.
func (p *Pool) Run(ctx context.Context, task func() error) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()

	return task()
}

// InFlight - количество занятых слотов, нужно тестам и метрикам
func (p *Pool) InFlight() int {
	return len(p.slots)
}

//----------------------------------

// KeyedMutex - таблица локов по ключу задачи. Два конкурентных аплоада одного
// ключа не должны оба увидеть "не обработано" и оба запустить модель.
// Разные ключи друг друга не блокируют.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Lock захватывает лок ключа и возвращает функцию освобождения
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()

	return func() {
		l.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
