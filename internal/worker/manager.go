package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"microblog/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second
)

// Manager orchestrates worker goroutines that consume from the feed stream.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	workerCount int
	batchSize   int64
	blockTime   time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	WorkerCount  int           // Number of worker goroutines
	BatchSize    int64         // Messages per read
	BlockTimeout time.Duration // Block time for XREADGROUP
}

// NewManager creates a new worker manager. Zero config fields fall back
// to the defaults.
func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
	}
}

// Start begins the worker goroutines. Call Stop() to gracefully shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed); err != nil {
		return err
	}

	log.Printf("[Manager] Starting %d workers for stream=%s group=%s",
		m.workerCount, queue.StreamFeed, queue.ConsumerGroupFeed)

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1
		m.wg.Add(1)
		go m.runWorker(workerID, consumerNameForWorker(workerID))
	}

	return nil
}

// Stop gracefully shuts down all workers. Blocks until they finish.
func (m *Manager) Stop() {
	log.Printf("[Manager] Stopping workers...")
	m.cancel()
	m.wg.Wait()
	log.Printf("[Manager] All workers stopped")
}

// runWorker is the main loop for a single worker goroutine.
func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()

	log.Printf("[Worker-%d] Started (consumer=%s)", workerID, consumerName)

	// Re-process messages delivered before a crash but never acknowledged
	m.processPending(workerID, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			log.Printf("[Worker-%d] Shutting down", workerID)
			return
		default:
			m.processMessages(workerID, consumerName)
		}
	}
}

// processPending drains this consumer's pending entries list.
func (m *Manager) processPending(workerID int, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed, consumerName, m.batchSize)
		if err != nil {
			log.Printf("[Worker-%d] Error reading pending: %v", workerID, err)
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Printf("[Worker-%d] Processing %d pending messages", workerID, len(messages))
		m.handleBatch(workerID, messages)
	}
}

// processMessages reads and handles one batch of new messages.
func (m *Manager) processMessages(workerID int, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Printf("[Worker-%d] Error reading messages: %v", workerID, err)
		// Back off briefly so a dead Redis doesn't spin the loop
		time.Sleep(time.Second)
		return
	}

	m.handleBatch(workerID, messages)
}

// handleBatch processes messages one by one, acknowledging each success.
// Failed messages stay pending and are retried on restart.
func (m *Manager) handleBatch(workerID int, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			log.Printf("[Worker-%d] Failed to handle message id=%s type=%s err=%v",
				workerID, msg.ID, msg.Event.Type, err)
			continue
		}
		if err := m.consumer.Ack(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed, msg.ID); err != nil {
			log.Printf("[Worker-%d] Failed to ack message id=%s err=%v", workerID, msg.ID, err)
		}
	}
}

// consumerNameForWorker builds a stable per-process consumer name so
// pending entries survive restarts of the same instance.
func consumerNameForWorker(workerID int) string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-worker-%d", host, workerID)
}
