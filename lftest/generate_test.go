package lftest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIncrementalIDs(t *testing.T) {
	gen := NewIDGenerator()
	ctx := context.Background()

	tid, sid := gen.NewIDs(ctx)
	assert.Equal(t, "00000000000000000000000000000001", tid.String())
	assert.Equal(t, "0000000000000001", sid.String())

	sid2 := gen.NewSpanID(ctx, tid)
	assert.Equal(t, "0000000000000002", sid2.String())

	tid2, sid3 := gen.NewIDs(ctx)
	assert.Equal(t, "00000000000000000000000000000002", tid2.String())
	assert.Equal(t, "0000000000000003", sid3.String())
}

func TestTimeGenerator(t *testing.T) {
	gen := NewTimeGenerator()
	assert.Equal(t, int64(1e9), gen.Now().UnixNano())
	assert.Equal(t, int64(2e9), gen.Now().UnixNano())
	assert.Equal(t, int64(3e9), gen.Now().UnixNano())
	assert.True(t, gen.Now().Equal(time.Unix(4, 0)))
}
