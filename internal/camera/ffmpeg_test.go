package camera

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncBuffer_ConcurrentWriteAndRead(t *testing.T) {
	b := &syncBuffer{}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = b.Write([]byte("x"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = b.String()
		}
	}()
	wg.Wait()

	assert.Len(t, b.String(), 200)
}

func TestReadLoop_ReportsStderrWhileFFmpegStillWrites(t *testing.T) {
	stderr := &syncBuffer{}
	_, _ = stderr.Write([]byte("device busy"))
	s := &ffmpegStream{
		device: &FFmpegDevice{Width: 2, Height: 2},
		stderr: stderr,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-stop:
				return
			default:
				_, _ = stderr.Write([]byte("."))
			}
		}
	}()

	// One full frame, then a truncated one.
	feed := io.MultiReader(strings.NewReader(strings.Repeat("a", 16)), strings.NewReader("abc"))
	s.readLoop(feed)
	close(stop)
	<-writerDone

	frame, err := s.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), frame.Seq)

	s.mu.Lock()
	feedErr := s.err
	s.mu.Unlock()
	require.Error(t, feedErr)
	assert.Contains(t, feedErr.Error(), "device busy")
	assert.ErrorIs(t, feedErr, io.ErrUnexpectedEOF)
}
