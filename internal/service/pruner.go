package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPruneInterval интервал очистки по умолчанию
const DefaultPruneInterval = time.Minute

// ExpiryPruner источник времени и операция очистки истёкших ссылок
type ExpiryPruner interface {
	Now() time.Time
	PruneExpired(ctx context.Context, now time.Time) (int, error)
}

// Pruner периодически удаляет истёкшие ссылки.
// Start запускает цикл, Stop останавливает его и ждёт завершения.
type Pruner struct {
	registry ExpiryPruner
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewPruner создаёт планировщик очистки
func NewPruner(registry ExpiryPruner, interval time.Duration, logger *zap.Logger) *Pruner {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pruner{
		registry: registry,
		interval: interval,
		logger:   logger,
	}
}

// Start запускает цикл очистки. Повторный вызов ничего не делает.
func (p *Pruner) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.running = true

	p.logger.Info("Starting expired links pruner", zap.Duration("interval", p.interval))

	p.wg.Add(1)
	go p.run(ctx)
}

// Stop останавливает цикл и ждёт его завершения. Безопасен при повторном вызове.
func (p *Pruner) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Expired links pruner stopped")
}

func (p *Pruner) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	now := p.registry.Now()

	removed, err := p.registry.PruneExpired(ctx, now)
	if err != nil {
		p.logger.Error("Failed to persist after pruning expired links",
			zap.Int("removed", removed),
			zap.Error(err),
		)
		return
	}

	if removed > 0 {
		p.logger.Debug("Pruned expired links", zap.Int("removed", removed), zap.Time("now", now))
	}
}
