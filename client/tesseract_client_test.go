package client

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Aashish23092/albaran-merge/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTesseractClientBoundsAbandonedCalls(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	tc := NewTesseractClient("", nil)
	tc.run = func(img []byte) (*dto.OCRResult, error) {
		started.Add(1)
		<-release
		return &dto.OCRResult{Text: string(img)}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err := tc.Recognize(ctx, []byte("hung"))
	cancel()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), tc.Abandoned())

	// The hung call still holds the only slot, so no second call is started.
	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err = tc.Recognize(ctx, []byte("next"))
	cancel()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "busy")
	assert.Equal(t, int32(1), started.Load())

	close(release)
	res, err := tc.Recognize(context.Background(), []byte("ALBARAN A25 487"))
	require.NoError(t, err)
	assert.Equal(t, "ALBARAN A25 487", res.Text)
	assert.Equal(t, int32(2), started.Load())
	assert.Equal(t, int64(1), tc.Abandoned())
}

func TestTesseractClientDefaults(t *testing.T) {
	tc := NewTesseractClient("/usr/share/tessdata", nil)

	assert.Equal(t, "gosseract", tc.Name())
	assert.Equal(t, []string{"spa"}, tc.languages)
}
