package emitter

import (
	"github.com/tenscale/kernelgen/ops"
)

// ParallelConfig is an operation's parallel execution request: how many
// slices each outer dimension of the output splits into, outermost first.
type ParallelConfig struct {
	OuterDimensionPartitions []int64
}

// GetParallelConfig reads an operation's scheduling hints. It returns nil
// when the backend config is absent, unreadable, or carries no partition
// counts; serial emission is always valid, so none of those is an error.
func GetParallelConfig(op *ops.Operation) *ParallelConfig {
	cfg, err := op.BackendConfig()
	if err != nil || len(cfg.OuterDimensionPartitions) == 0 {
		return nil
	}

	partitions := make([]int64, len(cfg.OuterDimensionPartitions))
	copy(partitions, cfg.OuterDimensionPartitions)
	return &ParallelConfig{OuterDimensionPartitions: partitions}
}
