package core

import (
	"sync"
	"time"
)

const AVG_COUNT uint8 = 30

// UploadMetrics accumulates statistics about staged texture uploads. The flush
// time average is taken over the last AVG_COUNT flushes.
type UploadMetrics struct {
	mu sync.Mutex

	flushes     uint64
	bytesStaged uint64
	copies      uint64
	blits       uint64

	avgCounter uint8
	times      [AVG_COUNT]time.Duration
	avg        time.Duration
}

type UploadStats struct {
	Flushes      uint64
	BytesStaged  uint64
	Copies       uint64
	Blits        uint64
	AvgFlushTime time.Duration
}

func NewUploadMetrics() *UploadMetrics {
	return &UploadMetrics{}
}

// Record registers one flush of the given size.
func (m *UploadMetrics) Record(bytes uint64, blits uint32, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flushes++
	m.copies++
	m.bytesStaged += bytes
	m.blits += uint64(blits)

	m.times[m.avgCounter] = elapsed
	if m.avgCounter == AVG_COUNT-1 {
		var sum time.Duration
		for i := uint8(0); i < AVG_COUNT; i++ {
			sum += m.times[i]
		}
		m.avg = sum / time.Duration(AVG_COUNT)
	}
	m.avgCounter++
	m.avgCounter %= AVG_COUNT
}

func (m *UploadMetrics) Stats() UploadStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	avg := m.avg
	if m.flushes < uint64(AVG_COUNT) && m.flushes > 0 {
		var sum time.Duration
		for i := uint8(0); i < m.avgCounter; i++ {
			sum += m.times[i]
		}
		avg = sum / time.Duration(m.avgCounter)
	}
	return UploadStats{
		Flushes:      m.flushes,
		BytesStaged:  m.bytesStaged,
		Copies:       m.copies,
		Blits:        m.blits,
		AvgFlushTime: avg,
	}
}
