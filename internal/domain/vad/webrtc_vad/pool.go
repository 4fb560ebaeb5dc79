package webrtc_vad

import (
	"context"
	"fmt"
	"sync"

	pool "github.com/jolestar/go-commons-pool/v2"

	"speaking-stone-golang/internal/domain/vad/inter"
)

// WebRTCVADPool pools VAD instances so concurrent sessions do not pay
// the instance creation cost per utterance.
type WebRTCVADPool struct {
	pool *pool.ObjectPool
	ctx  context.Context
}

// NewWebRTCVADPool creates a pool producing instances with the given
// sample rate and mode.
func NewWebRTCVADPool(sampleRate, mode, maxTotal int) (*WebRTCVADPool, error) {
	ctx := context.Background()

	factory := pool.NewPooledObjectFactory(
		func(ctx context.Context) (interface{}, error) {
			return NewWebRTCVADWithConfig(sampleRate, mode)
		},
		func(ctx context.Context, object *pool.PooledObject) error {
			if vad, ok := object.Object.(*WebRTCVAD); ok {
				return vad.Close()
			}
			return nil
		},
		func(ctx context.Context, object *pool.PooledObject) bool {
			vad, ok := object.Object.(*WebRTCVAD)
			return ok && vad.IsValid()
		},
		nil,
		nil,
	)

	config := pool.NewDefaultPoolConfig()
	if maxTotal <= 0 {
		maxTotal = 5
	}
	config.MaxTotal = maxTotal
	config.MaxIdle = maxTotal
	config.TestOnBorrow = true

	return &WebRTCVADPool{
		pool: pool.NewObjectPool(ctx, factory, config),
		ctx:  ctx,
	}, nil
}

// AcquireVAD borrows an instance from the pool.
func (p *WebRTCVADPool) AcquireVAD() (inter.VAD, error) {
	resource, err := p.pool.BorrowObject(p.ctx)
	if err != nil {
		return nil, err
	}

	vad, ok := resource.(*WebRTCVAD)
	if !ok {
		p.pool.ReturnObject(p.ctx, resource)
		return nil, fmt.Errorf("invalid resource type")
	}
	return vad, nil
}

// ReleaseVAD returns an instance to the pool.
func (p *WebRTCVADPool) ReleaseVAD(vad inter.VAD) error {
	webrtcVAD, ok := vad.(*WebRTCVAD)
	if !ok {
		return fmt.Errorf("invalid VAD type")
	}
	return p.pool.ReturnObject(p.ctx, webrtcVAD)
}

// Close shuts the pool down.
func (p *WebRTCVADPool) Close() error {
	p.pool.Close(p.ctx)
	return nil
}

var defaultPool *WebRTCVADPool
var once sync.Once

// AcquireVAD borrows from a process-wide default pool, creating it on
// first use from the config map (sample_rate, mode, pool_size).
func AcquireVAD(config map[string]interface{}) (inter.VAD, error) {
	var err error
	once.Do(func() {
		sampleRate := DefaultSampleRate
		mode := DefaultMode
		poolSize := 5
		if v, ok := config["sample_rate"].(int); ok && v > 0 {
			sampleRate = v
		}
		if v, ok := config["mode"].(int); ok {
			mode = v
		}
		if v, ok := config["pool_size"].(int); ok && v > 0 {
			poolSize = v
		}
		defaultPool, err = NewWebRTCVADPool(sampleRate, mode, poolSize)
	})
	if err != nil {
		return nil, err
	}
	if defaultPool == nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD pool")
	}
	return defaultPool.AcquireVAD()
}

// ReleaseVAD returns an instance to the default pool.
func ReleaseVAD(vad inter.VAD) error {
	if defaultPool != nil {
		return defaultPool.ReleaseVAD(vad)
	}
	return nil
}
