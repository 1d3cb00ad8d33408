package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/inkwell-ai/mediaflow/media/chain"
)

func TestNewGenerateHandler_ChainConfigMerge(t *testing.T) {
	def := chain.DefaultConfig()

	tests := []struct {
		name string
		in   chain.Config
		want chain.Config
	}{
		{
			name: "zero values keep defaults",
			in:   chain.Config{},
			want: def,
		},
		{
			name: "explicit limits override",
			in: chain.Config{
				MaxHops:    5,
				MaxRetries: 4,
				RetryDelay: 2 * time.Second,
			},
			want: chain.Config{
				MaxHops:        5,
				MaxRetries:     4,
				RetryDelay:     2 * time.Second,
				MaxWaitPerStep: def.MaxWaitPerStep,
				PollInterval:   def.PollInterval,
				AspectRatio:    def.AspectRatio,
			},
		},
		{
			name: "negative max retries disables retries",
			in:   chain.Config{MaxRetries: -1},
			want: chain.Config{
				MaxHops:        def.MaxHops,
				MaxRetries:     0,
				RetryDelay:     def.RetryDelay,
				MaxWaitPerStep: def.MaxWaitPerStep,
				PollInterval:   def.PollInterval,
				AspectRatio:    def.AspectRatio,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewGenerateHandler(nil, nil, nil, tt.in, zap.NewNop())
			assert.Equal(t, tt.want, h.chainCfg)
		})
	}
}
