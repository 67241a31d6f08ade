package events

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"
)

// DefaultIngestCapacity 对应一次 tick 之间允许积压的最大行数。
const DefaultIngestCapacity = 1000

// Source 标记一行日志的来源。
type Source string

const (
	SourceStdout Source = "stdout"
	SourceStderr Source = "stderr"
	SourcePipe   Source = "pipe"
	SourceSystem Source = "system"
)

// Line 是进入日志面板前的一行原始文本。
type Line struct {
	Source Source
	Text   string
	Time   time.Time
}

// IngestQueue 是有界的多生产者/单消费者缓冲区。
// 满时丢弃最旧的一行并计数，生产者永远不会阻塞。
type IngestQueue struct {
	mu       sync.Mutex
	buf      []Line
	head     int
	size     int
	dropped  uint64
	capacity int
	now      func() time.Time
}

// NewIngestQueue 创建队列；capacity <= 0 时使用默认容量。
func NewIngestQueue(capacity int) *IngestQueue {
	if capacity <= 0 {
		capacity = DefaultIngestCapacity
	}
	return &IngestQueue{
		buf:      make([]Line, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Enqueue 可在任意 goroutine 调用。
func (q *IngestQueue) Enqueue(line Line) {
	if line.Time.IsZero() {
		line.Time = q.now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == q.capacity {
		q.buf[q.head] = Line{}
		q.head = (q.head + 1) % q.capacity
		q.size--
		q.dropped++
	}
	q.buf[(q.head+q.size)%q.capacity] = line
	q.size++
}

// Push 是 Enqueue 的便捷形式。
func (q *IngestQueue) Push(source Source, text string) {
	q.Enqueue(Line{Source: source, Text: text})
}

// DrainAll 一次性取走全部积压并清空队列，只能由单一消费者调用。
func (q *IngestQueue) DrainAll() []Line {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil
	}
	out := make([]Line, q.size)
	for i := 0; i < q.size; i++ {
		idx := (q.head + i) % q.capacity
		out[i] = q.buf[idx]
		q.buf[idx] = Line{}
	}
	q.head = 0
	q.size = 0
	return out
}

// Len 返回当前积压行数。
func (q *IngestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap 返回队列容量。
func (q *IngestQueue) Cap() int {
	return q.capacity
}

// Dropped 返回累计被丢弃的行数。
func (q *IngestQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Writer 返回一个按行切分写入内容并入队的 io.Writer。
// 不完整的尾行会保留到下一次写入或 Flush。
func (q *IngestQueue) Writer(source Source) *LineWriter {
	return &LineWriter{q: q, source: source}
}

// LineWriter 把字节流切成行写入 IngestQueue。
type LineWriter struct {
	mu      sync.Mutex
	q       *IngestQueue
	source  Source
	partial bytes.Buffer
}

var _ io.Writer = (*LineWriter)(nil)

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(p)
	for len(p) > 0 {
		idx := bytes.IndexByte(p, '\n')
		if idx < 0 {
			w.partial.Write(p)
			break
		}
		w.partial.Write(p[:idx])
		w.emit()
		p = p[idx+1:]
	}
	return n, nil
}

// Flush 把未以换行结尾的残余内容作为一行入队。
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.partial.Len() > 0 {
		w.emit()
	}
}

func (w *LineWriter) emit() {
	text := strings.TrimRight(w.partial.String(), "\r")
	w.partial.Reset()
	if strings.TrimSpace(text) == "" {
		return
	}
	w.q.Push(w.source, text)
}
